// Package mysql 基于 GORM 的 MySQL 存储实现
// 负责建立 MySQL 连接、自动迁移表结构、组装 Repository 聚合
package mysql

import (
	"context"
	"fmt"
	"time"

	"agrilink_server/internal/config"
	"agrilink_server/internal/dao"
	"agrilink_server/internal/model"

	"go.uber.org/zap"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 连接 MySQL 并返回 Repository 聚合
// 执行步骤：
//  1. 构建 DSN 连接字符串
//  2. 使用 GORM 建立连接并配置连接池
//  3. AutoMigrate 自动迁移表结构
func Open(cfg config.MysqlConfig) (*dao.Repositories, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DatabaseName,
	)

	db, err := gorm.Open(mysqldriver.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("mysql open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&model.UserInfo{},     // 用户展示信息表
		&model.Conversation{}, // 单聊会话表
		&model.Message{},      // 消息表
		&model.Notification{}, // 通知表
	); err != nil {
		return nil, fmt.Errorf("mysql migrate: %w", err)
	}

	zap.L().Info("MySQL connected", zap.String("host", cfg.Host), zap.String("db", cfg.DatabaseName))
	return NewRepositories(db), nil
}

// NewRepositories 以已有的 gorm 连接组装 Repository 聚合
func NewRepositories(db *gorm.DB) *dao.Repositories {
	return dao.NewRepositories(
		NewUserRepository(db),
		NewConversationRepository(db),
		NewNotificationRepository(db),
		&backend{db: db},
	)
}

type backend struct {
	db *gorm.DB
}

func (b *backend) Ping(ctx context.Context) error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return wrapDBError(err, "获取连接池")
	}
	return wrapDBError(sqlDB.PingContext(ctx), "ping mysql")
}

func (b *backend) Close(context.Context) error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return wrapDBError(err, "获取连接池")
	}
	return sqlDB.Close()
}
