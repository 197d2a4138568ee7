package repository

import (
	"sync"

	"github.com/AbiyasX/FirebaseActt/internal/article"
)

// Subscription is a live view of the article collection. Events delivers a
// snapshot after every change until Close is called or the stream fails.
type Subscription interface {
	Events() <-chan article.Event
	Close() error
}

// feed is a Subscription backed by a one-slot, latest-wins mailbox. A slow
// reader may miss intermediate snapshots but never receives them out of order.
type feed struct {
	mu      sync.Mutex
	ch      chan article.Event
	done    chan struct{}
	closed  bool
	onClose func()
}

func newFeed(onClose func()) *feed {
	return &feed{
		ch:      make(chan article.Event, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

func (f *feed) Events() <-chan article.Event { return f.ch }

// push replaces any undelivered event with ev. Returns false once closed.
func (f *feed) push(ev article.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	for {
		select {
		case f.ch <- ev:
			return true
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

func (f *feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.done)
	close(f.ch)
	f.mu.Unlock()
	if f.onClose != nil {
		f.onClose()
	}
	return nil
}
