package constants

const (
	CHANNEL_SIZE            = 100  // 会话发送通道大小
	REDIS_TIMEOUT           = 1    // redis timeout (分钟)
	NOTIFICATION_LIST_LIMIT = 50   // 通知列表最多返回条数
	MESSAGE_MAX_LENGTH      = 2000 // 单条消息最大字符数
	RING_TIMEOUT_SECONDS    = 45   // 通话振铃超时（秒）
)
