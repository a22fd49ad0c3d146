// Package roomkey 根据两个用户 ID 计算聊天/通话房间号
package roomkey

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Key 返回与参数顺序无关的房间号
// 排序后以 "_" 拼接再做 SHA-256，与前端使用的算法保持一致
func Key(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	sum := sha256.Sum256([]byte(strings.Join(pair, "_")))
	return hex.EncodeToString(sum[:])
}

// Normalize 返回有序的用户对，会话表用它作为唯一键
func Normalize(userA, userB string) (string, string) {
	if userA > userB {
		return userB, userA
	}
	return userA, userB
}
