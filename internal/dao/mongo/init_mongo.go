// Package mongo 基于 mongo-driver 的 MongoDB 存储实现
// 集合：users（认证子系统维护，只读）、conversations（内嵌 messages）、notifications
package mongo

import (
	"context"
	"fmt"
	"time"

	"agrilink_server/internal/config"
	"agrilink_server/internal/dao"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	usersCollection         = "users"
	conversationsCollection = "conversations"
	notificationsCollection = "notifications"
)

// Open 连接 MongoDB、建立索引并返回 Repository 聚合
func Open(cfg config.MongoConfig) (*dao.Repositories, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	if err := ensureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	zap.L().Info("MongoDB connected", zap.String("database", cfg.Database))
	return NewRepositories(client, db), nil
}

// NewRepositories 以已有连接组装 Repository 聚合
func NewRepositories(client *mongo.Client, db *mongo.Database) *dao.Repositories {
	return dao.NewRepositories(
		NewUserRepository(db.Collection(usersCollection)),
		NewConversationRepository(db.Collection(conversationsCollection)),
		NewNotificationRepository(db.Collection(notificationsCollection)),
		&backend{client: client},
	)
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(conversationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userOneId", Value: 1}, {Key: "userTwoId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("pair_idx"),
	})
	if err != nil {
		return fmt.Errorf("mongo index conversations: %w", err)
	}
	_, err = db.Collection(notificationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "recipient", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("recipient_created_idx"),
	})
	if err != nil {
		return fmt.Errorf("mongo index notifications: %w", err)
	}
	return nil
}

type backend struct {
	client *mongo.Client
}

func (b *backend) Ping(ctx context.Context) error {
	return wrapMongoError(b.client.Ping(ctx, nil), "ping mongo")
}

func (b *backend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}
