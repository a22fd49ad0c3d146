package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrilink_server/internal/config"
	"agrilink_server/internal/dao"
	"agrilink_server/internal/dao/memory"
	"agrilink_server/internal/dao/mongo"
	"agrilink_server/internal/dao/mysql"
	myredis "agrilink_server/internal/dao/redis"
	"agrilink_server/internal/gateway/websocket"
	"agrilink_server/internal/handler"
	"agrilink_server/internal/https_server"
	"agrilink_server/internal/infrastructure/logger"
	"agrilink_server/internal/infrastructure/metric"
	"agrilink_server/internal/infrastructure/mq"
	"agrilink_server/internal/service"
	"agrilink_server/pkg/util/jwt"
	"agrilink_server/pkg/util/snowflake"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.MainConfig.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer zap.L().Sync()
	zap.L().Info("日志初始化成功", zap.String("mode", conf.MainConfig.Mode))

	if conf.MainConfig.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 3. 初始化 ID 生成、JWT、参数校验翻译、监控指标
	snowflake.Init(conf.SnowflakeConfig.MachineID)
	if conf.JWTConfig.Secret == "" {
		zap.L().Fatal("jwtConfig.secret 未配置，无法校验 Token")
	}
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Fatal("init validator translator failed", zap.Error(err))
	}
	metric.Init()

	// 4. 初始化存储
	repos, err := openStorage(conf)
	if err != nil {
		zap.L().Fatal("存储初始化失败", zap.String("driver", conf.StorageConfig.Driver), zap.Error(err))
	}
	repos = dao.Guard(repos, conf.BreakerConfig)
	zap.L().Info("存储初始化成功", zap.String("driver", conf.StorageConfig.Driver))

	// 5. 初始化 Redis（可选）
	var cache myredis.AsyncCacheService
	var redisCache *myredis.RedisCache
	if conf.RedisConfig.Enabled {
		redisCache, err = myredis.Open(conf.RedisConfig)
		if err != nil {
			zap.L().Fatal("Redis 初始化失败", zap.Error(err))
		}
		cache = redisCache
		zap.L().Info("Redis 初始化成功")
	}

	// 6. 初始化领域事件投递（可选）
	var publisher mq.EventPublisher = mq.Noop{}
	if conf.KafkaConfig.Mode == "kafka" {
		if err := mq.CreateTopic(conf.KafkaConfig, conf.KafkaConfig.Partition); err != nil {
			zap.L().Warn("create kafka topic failed", zap.Error(err))
		}
		publisher = mq.NewKafkaPublisher(conf.KafkaConfig)
		zap.L().Info("Kafka 事件投递已开启", zap.String("topic", conf.KafkaConfig.EventTopic))
	}

	// 7. 初始化 Service 层和 websocket 网关
	svcs := service.NewServices(repos, cache, publisher, conf.RealtimeConfig)
	gateway := websocket.NewGateway(svcs.Chat, websocket.OptionsFromConfig(conf.RealtimeConfig))

	// 8. 初始化 HTTP 服务器
	engine := https_server.Init(handler.NewHandlers(svcs, gateway), conf)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler: engine,
	}

	go func() {
		zap.L().Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	// 设置信号监听
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Error("http server shutdown", zap.Error(err))
	}
	// 已升级的连接不受 Shutdown 管理，需要单独关闭
	gateway.CloseAll()

	if err := publisher.Close(); err != nil {
		zap.L().Error("close event publisher", zap.Error(err))
	}
	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			zap.L().Error("close redis", zap.Error(err))
		}
	}
	if err := repos.Close(ctx); err != nil {
		zap.L().Error("close storage", zap.Error(err))
	}

	zap.L().Info("服务器已关闭")
}

// openStorage 按配置选择存储驱动
func openStorage(conf *config.Config) (*dao.Repositories, error) {
	switch conf.StorageConfig.Driver {
	case "mysql":
		return mysql.Open(conf.MysqlConfig)
	case "mongo":
		return mongo.Open(conf.MongoConfig)
	case "memory":
		zap.L().Warn("使用内存存储，进程退出后数据丢失")
		return memory.New().Repositories(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", conf.StorageConfig.Driver)
	}
}
