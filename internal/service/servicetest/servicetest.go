// Package servicetest Service 层测试用的记录型会话与事件发布者
package servicetest

import (
	"context"
	"sync"

	"agrilink_server/internal/dto/event"
	"agrilink_server/internal/infrastructure/mq"
)

// Sink 记录收到的所有推送
type Sink struct {
	id     string
	mu     sync.Mutex
	events []event.Outbound
	closed bool
}

func NewSink(id string) *Sink {
	return &Sink{id: id}
}

func (s *Sink) ID() string { return s.id }

func (s *Sink) Deliver(evt event.Outbound) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.events = append(s.events, evt)
	return true
}

// Close 之后的推送全部丢弃
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Sink) Events() []event.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Outbound(nil), s.events...)
}

// Count 某类事件的数量
func (s *Sink) Count(name string) int {
	n := 0
	for _, e := range s.Events() {
		if e.EventName() == name {
			n++
		}
	}
	return n
}

// Last 最近一条某类事件，没有时返回 nil
func (s *Sink) Last(name string) event.Outbound {
	events := s.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].EventName() == name {
			return events[i]
		}
	}
	return nil
}

func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// Publisher 记录发布的领域事件
type Publisher struct {
	mu     sync.Mutex
	events []mq.DomainEvent
}

func (p *Publisher) Publish(_ context.Context, _ string, evt mq.DomainEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *Publisher) Close() error { return nil }

// Types 已发布事件的类型序列
func (p *Publisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

var _ mq.EventPublisher = (*Publisher)(nil)
