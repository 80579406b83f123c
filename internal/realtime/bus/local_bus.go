package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/certification-backend/internal/realtime"
)

// localBus delivers in-process only; used when REDIS_ADDR is unset.
type localBus struct {
	mu        sync.RWMutex
	listeners []func(realtime.Message)
}

func NewLocalBus() Bus { return &localBus{} }

func (b *localBus) Publish(ctx context.Context, msg realtime.Message) error {
	if msg.Channel == "" {
		return fmt.Errorf("realtime message channel required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.listeners {
		fn(msg)
	}
	return nil
}

func (b *localBus) StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, onMsg)
	b.mu.Unlock()
	return nil
}

func (b *localBus) Close() error {
	b.mu.Lock()
	b.listeners = nil
	b.mu.Unlock()
	return nil
}
