// Package presence 进程内的在线会话登记
// 记录每个传输会话属于哪个用户、加入了哪些房间；不持久化，进程重启后由客户端重连重新登记
package presence

import (
	"sort"
	"sync"

	"agrilink_server/internal/dto/event"
	"agrilink_server/internal/infrastructure/metric"

	"go.uber.org/zap"
)

// Sink 可推送事件的会话
// Deliver 不阻塞：缓冲已满或会话已关闭时返回 false，事件被丢弃
type Sink interface {
	ID() string
	Deliver(evt event.Outbound) bool
}

// RemoveHook 会话移除前的回调，此时会话仍可通过 Registry 查询
type RemoveHook func(sessionID, userID string)

type entry struct {
	sink     Sink
	userID   string
	rooms    map[string]struct{}
	seq      uint64
	removing bool
}

// Registry 会话登记表，所有修改都通过其方法完成
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	users    map[string]map[string]struct{}
	rooms    map[string]map[string]struct{}
	hooks    []RemoveHook
	seq      uint64
}

// NewRegistry 创建空登记表
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		users:    make(map[string]map[string]struct{}),
		rooms:    make(map[string]map[string]struct{}),
	}
}

// OnRemove 注册会话移除回调，应在接受连接前完成注册
func (r *Registry) OnRemove(hook RemoveHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// RegisterSession 登记会话归属，已存在时不做任何修改
func (r *Registry) RegisterSession(sink Sink, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := sink.ID()
	if _, ok := r.sessions[id]; ok {
		return false
	}
	r.seq++
	r.sessions[id] = &entry{sink: sink, userID: userID, rooms: make(map[string]struct{}), seq: r.seq}
	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{})
		r.users[userID] = set
	}
	set[id] = struct{}{}
	metric.ActiveSessions.Inc()
	return true
}

// JoinRoom 会话加入房间，幂等；未登记的会话返回 false
func (r *Registry) JoinRoom(sessionID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	e.rooms[roomID] = struct{}{}
	set, ok := r.rooms[roomID]
	if !ok {
		set = make(map[string]struct{})
		r.rooms[roomID] = set
	}
	set[sessionID] = struct{}{}
	return true
}

// SessionsForUser 用户当前所有会话，按登记顺序
func (r *Registry) SessionsForUser(userID string) []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.users[userID])
}

// SessionsInRoom 加入了房间的所有会话，按登记顺序
func (r *Registry) SessionsInRoom(roomID string) []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.rooms[roomID])
}

func (r *Registry) collect(ids map[string]struct{}) []Sink {
	if len(ids) == 0 {
		return nil
	}
	entries := make([]*entry, 0, len(ids))
	for id := range ids {
		entries = append(entries, r.sessions[id])
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	sinks := make([]Sink, len(entries))
	for i, e := range entries {
		sinks[i] = e.sink
	}
	return sinks
}

// HasLiveSessionExcept 用户除 sessionID 外是否还有未处于移除中的会话
func (r *Registry) HasLiveSessionExcept(userID, sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := range r.users[userID] {
		if id == sessionID {
			continue
		}
		if e := r.sessions[id]; e != nil && !e.removing {
			return true
		}
	}
	return false
}

// UserOf 会话所属用户
func (r *Registry) UserOf(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	return e.userID, true
}

// IsOnline 用户是否至少有一个会话
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// Count 当前会话总数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RemoveSession 断开时调用
// 先在会话仍可查询时依次执行回调，再清理登记；同一会话只会被处理一次
func (r *Registry) RemoveSession(sessionID string) bool {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	if !ok || e.removing {
		r.mu.Unlock()
		return false
	}
	e.removing = true
	hooks := append([]RemoveHook(nil), r.hooks...)
	r.mu.Unlock()

	for _, hook := range hooks {
		runHook(hook, sessionID, e.userID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	if set := r.users[e.userID]; set != nil {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.users, e.userID)
		}
	}
	for roomID := range e.rooms {
		if set := r.rooms[roomID]; set != nil {
			delete(set, sessionID)
			if len(set) == 0 {
				delete(r.rooms, roomID)
			}
		}
	}
	metric.ActiveSessions.Dec()
	return true
}

func runHook(hook RemoveHook, sessionID, userID string) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("presence remove hook panic",
				zap.String("session_id", sessionID),
				zap.String("user_id", userID),
				zap.Any("recover", rec))
		}
	}()
	hook(sessionID, userID)
}

// Push 向一组会话推送事件，返回成功投递数；丢弃的推送只计数不报错
func Push(sinks []Sink, evt event.Outbound) int {
	delivered := 0
	for _, s := range sinks {
		if s.Deliver(evt) {
			delivered++
			continue
		}
		metric.PushesDropped.Inc()
		zap.L().Debug("push dropped", zap.String("session_id", s.ID()), zap.String("event", evt.EventName()))
	}
	return delivered
}
