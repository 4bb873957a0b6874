package service

import (
	"sync"

	"github.com/arturoeanton/go-git-mirror/internal/domain"
)

// MirrorEventBus broadcasts mirror state changes to subscribers.
// Slow subscribers miss events rather than block publishers.
type MirrorEventBus struct {
	mu   sync.RWMutex
	subs []chan domain.MirrorEvent
}

func NewMirrorEventBus() *MirrorEventBus {
	return &MirrorEventBus{}
}

func (b *MirrorEventBus) Publish(evt domain.MirrorEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *MirrorEventBus) Subscribe() chan domain.MirrorEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan domain.MirrorEvent, 10)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *MirrorEventBus) Unsubscribe(ch chan domain.MirrorEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			break
		}
	}
}
