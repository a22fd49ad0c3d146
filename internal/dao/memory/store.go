// Package memory 进程内存储实现
// 用于开发环境（未配置数据库时的默认驱动）和 Service 层测试
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"agrilink_server/internal/dao"
	"agrilink_server/internal/model"
	"agrilink_server/pkg/errorx"
	"agrilink_server/pkg/roomkey"
	"agrilink_server/pkg/util/snowflake"
)

// Store 所有数据保存在一把互斥锁保护的 map 中
type Store struct {
	mu            sync.Mutex
	users         map[string]model.UserInfo
	conversations map[string]*model.Conversation // key: conversation uuid
	pairs         map[string]string              // key: lo + "_" + hi -> conversation uuid
	messages      map[string][]model.Message     // key: conversation uuid
	notifications map[string]*model.Notification
	seq           int64
}

// New 创建空的内存存储
func New() *Store {
	return &Store{
		users:         make(map[string]model.UserInfo),
		conversations: make(map[string]*model.Conversation),
		pairs:         make(map[string]string),
		messages:      make(map[string][]model.Message),
		notifications: make(map[string]*model.Notification),
	}
}

// Repositories 以内存存储组装 Repository 聚合
func (s *Store) Repositories() *dao.Repositories {
	return dao.NewRepositories(userRepo{s}, conversationRepo{s}, notificationRepo{s}, s)
}

// PutUser 写入用户展示信息（认证子系统在内存模式下不存在，测试和开发时手动注册）
func (s *Store) PutUser(u model.UserInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Uuid] = u
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

func pairKey(a, b string) string {
	lo, hi := roomkey.Normalize(a, b)
	return lo + "_" + hi
}

// ==================== User ====================

type userRepo struct{ s *Store }

func (r userRepo) FindDisplayInfo(_ context.Context, userId string) (*model.UserInfo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userId]
	if !ok {
		return nil, errorx.Newf(errorx.CodeNotFound, "用户 %s 不存在", userId)
	}
	return &u, nil
}

// ==================== Conversation ====================

type conversationRepo struct{ s *Store }

func (r conversationRepo) FindOrCreate(_ context.Context, userA, userB string) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pairKey(userA, userB)
	if id, ok := r.s.pairs[key]; ok {
		c := *r.s.conversations[id]
		return &c, nil
	}
	lo, hi := roomkey.Normalize(userA, userB)
	now := time.Now()
	c := &model.Conversation{
		Uuid:      snowflake.NewConversationID(),
		UserOneId: lo,
		UserTwoId: hi,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.conversations[c.Uuid] = c
	r.s.pairs[key] = c.Uuid
	out := *c
	return &out, nil
}

func (r conversationRepo) FindByPair(_ context.Context, userA, userB string) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.pairs[pairKey(userA, userB)]
	if !ok {
		return nil, errorx.New(errorx.CodeNotFound, "会话不存在")
	}
	c := *r.s.conversations[id]
	return &c, nil
}

func (r conversationRepo) AppendMessage(_ context.Context, conversationId, senderId, text string, ts time.Time) (*model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[conversationId]
	if !ok {
		return nil, errorx.Newf(errorx.CodeNotFound, "会话 %s 不存在", conversationId)
	}
	r.s.seq++
	msg := model.Message{
		Id:             r.s.seq,
		Uuid:           snowflake.NewMessageID(),
		ConversationId: conversationId,
		SendId:         senderId,
		Content:        text,
		CreatedAt:      ts,
	}
	r.s.messages[conversationId] = append(r.s.messages[conversationId], msg)
	c.UpdatedAt = ts
	return &msg, nil
}

func (r conversationRepo) ListMessages(_ context.Context, conversationId string) ([]model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := r.s.messages[conversationId]
	out := make([]model.Message, len(list))
	copy(out, list)
	return out, nil
}

// ==================== Notification ====================

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.notifications[n.Uuid]; exists {
		return errorx.Newf(errorx.CodeDBError, "通知 %s 已存在", n.Uuid)
	}
	r.s.seq++
	n.Id = r.s.seq
	cp := *n
	r.s.notifications[n.Uuid] = &cp
	return nil
}

func (r notificationRepo) FindByUuid(_ context.Context, id string) (*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return nil, errorx.Newf(errorx.CodeNotFound, "通知 %s 不存在", id)
	}
	cp := *n
	return &cp, nil
}

func (r notificationRepo) ListByRecipient(_ context.Context, recipientId string, limit int) ([]model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []model.Notification
	for _, n := range r.s.notifications {
		if n.RecipientId == recipientId {
			list = append(list, *n)
		}
	}
	// 时间倒序，同一时刻按写入顺序倒序
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].Id > list[j].Id
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r notificationRepo) CountUnread(_ context.Context, recipientId string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, n := range r.s.notifications {
		if n.RecipientId == recipientId && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r notificationRepo) MarkRead(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return errorx.Newf(errorx.CodeNotFound, "通知 %s 不存在", id)
	}
	n.IsRead = true
	return nil
}

func (r notificationRepo) MarkAllRead(_ context.Context, recipientId string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var updated int64
	for _, n := range r.s.notifications {
		if n.RecipientId == recipientId && !n.IsRead {
			n.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (r notificationRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.notifications[id]; !ok {
		return errorx.Newf(errorx.CodeNotFound, "通知 %s 不存在", id)
	}
	delete(r.s.notifications, id)
	return nil
}
