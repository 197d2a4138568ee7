package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DefaultChangeChannel is the Redis channel used to announce article writes.
const DefaultChangeChannel = "articles:changed"

// Notifier tells live subscriptions that the collection changed.
type Notifier interface {
	// Publish announces a local write. Notifiers that observe the database
	// directly may ignore it.
	Publish(ctx context.Context) error
	// Listen returns once the listener is established.
	Listen(ctx context.Context) (Listener, error)
}

// Listener delivers coalesced change signals. Changes is closed when the
// listener stops; Err then reports why (nil after ctx cancel or Close).
type Listener interface {
	Changes() <-chan struct{}
	Err() error
	Close() error
}

type signalListener struct {
	ch     chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	mu     sync.Mutex
	err    error
}

func newSignalListener(cancel context.CancelFunc) *signalListener {
	return &signalListener{ch: make(chan struct{}, 1), cancel: cancel}
}

func (l *signalListener) Changes() <-chan struct{} { return l.ch }

func (l *signalListener) signal() {
	select {
	case l.ch <- struct{}{}:
	default:
	}
}

func (l *signalListener) stop(err error) {
	l.once.Do(func() {
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		close(l.ch)
	})
}

func (l *signalListener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *signalListener) Close() error {
	l.cancel()
	return nil
}

// ChangeStreamNotifier watches the collection with a MongoDB change stream.
type ChangeStreamNotifier struct {
	col *mongo.Collection
}

func NewChangeStreamNotifier(col *mongo.Collection) *ChangeStreamNotifier {
	return &ChangeStreamNotifier{col: col}
}

// Publish is a no-op: the change stream already sees every write.
func (n *ChangeStreamNotifier) Publish(ctx context.Context) error { return nil }

func (n *ChangeStreamNotifier) Listen(ctx context.Context) (Listener, error) {
	ctx, cancel := context.WithCancel(ctx)
	cs, err := n.col.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", n.col.Name(), err)
	}
	l := newSignalListener(cancel)
	go func() {
		defer cs.Close(context.Background())
		for cs.Next(ctx) {
			l.signal()
		}
		var err error
		if ctx.Err() == nil {
			err = cs.Err()
			if err == nil {
				err = fmt.Errorf("change stream on %s closed", n.col.Name())
			}
		}
		l.stop(err)
	}()
	return l, nil
}

// RedisNotifier announces writes over Redis pub/sub, for deployments where
// MongoDB is not a replica set or several service instances share a store.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChangeChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Publish(ctx context.Context) error {
	return n.client.Publish(ctx, n.channel, "changed").Err()
}

func (n *RedisNotifier) Listen(ctx context.Context) (Listener, error) {
	ctx, cancel := context.WithCancel(ctx)
	ps := n.client.Subscribe(ctx, n.channel)
	// wait for the subscription confirmation so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", n.channel, err)
	}
	l := newSignalListener(cancel)
	msgs := ps.Channel()
	go func() {
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				l.stop(nil)
				return
			case _, ok := <-msgs:
				if !ok {
					l.stop(fmt.Errorf("redis subscription %s closed", n.channel))
					return
				}
				l.signal()
			}
		}
	}()
	return l, nil
}
