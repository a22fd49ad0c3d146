package snowflake

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
)

// Init 初始化雪花算法节点
// 应在程序启动时调用一次，machineID 范围 0-1023
func Init(machineID int64) {
	nodeOnce.Do(func() {
		if machineID < 0 || machineID > 1023 {
			machineID = 1 // 默认节点 ID
			zap.L().Warn("Invalid MachineID in config, using default value 1")
		}
		var err error
		node, err = snowflake.NewNode(machineID)
		if err != nil {
			zap.L().Fatal("Failed to initialize snowflake node", zap.Error(err))
		}
		zap.L().Info("Snowflake node initialized", zap.Int64("machineID", machineID))
	})
}

// GenerateIDString 生成雪花 ID (string)
// 用于 JSON 序列化，避免 JavaScript 精度丢失
func GenerateIDString() string {
	Init(1) // 已初始化时为空操作
	return node.Generate().String()
}

// NewMessageID 消息 ID，M 前缀
func NewMessageID() string {
	return "M" + GenerateIDString()
}

// NewConversationID 会话 ID，C 前缀
func NewConversationID() string {
	return "C" + GenerateIDString()
}

// NewNotificationID 通知 ID，N 前缀
func NewNotificationID() string {
	return "N" + GenerateIDString()
}
