package respond

// OnlineRespond 用户在线状态
type OnlineRespond struct {
	UserId   string `json:"userId"`
	Online   bool   `json:"online"`
	Sessions int    `json:"sessions"`
}
