package mq

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"time"

	"agrilink_server/internal/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher 基于 kafka-go Writer 的异步发布者
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher 创建发布者，Async 模式下 WriteMessages 立即返回，结果在 Completion 中回调
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.HostPort),
		Topic:                  cfg.EventTopic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           time.Duration(cfg.Timeout) * time.Second,
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: false,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				zap.L().Warn("kafka publish failed", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}
	return &KafkaPublisher{writer: w}
}

// Publish 序列化并写入事件主题
func (k *KafkaPublisher) Publish(ctx context.Context, key string, evt DomainEvent) {
	value, err := json.Marshal(evt)
	if err != nil {
		zap.L().Error("marshal domain event", zap.String("type", evt.Type), zap.Error(err))
		return
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		zap.L().Warn("kafka enqueue failed", zap.String("type", evt.Type), zap.Error(err))
	}
}

// Close 刷新缓冲并关闭 Writer
func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

// CreateTopic 通过 controller 节点创建事件主题，主题已存在时 Kafka 返回错误，仅记录日志
func CreateTopic(cfg config.KafkaConfig, partitions int) error {
	conn, err := kafka.Dial("tcp", cfg.HostPort)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	ctrlConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer ctrlConn.Close()

	if err := ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.EventTopic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	}); err != nil {
		zap.L().Warn("kafka create topic", zap.String("topic", cfg.EventTopic), zap.Error(err))
	}
	return nil
}

var _ EventPublisher = (*KafkaPublisher)(nil)
var _ EventPublisher = Noop{}
