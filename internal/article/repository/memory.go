package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AbiyasX/FirebaseActt/internal/article"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("article not found")
)

// MemoryRepo is an in-memory article store used for local runs and tests.
// Snapshots list articles in creation order and are published while the
// write lock is held, so every subscriber sees writes in the order they
// happened.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*article.Article
	order []string
	subs  map[*feed]struct{}
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		store: make(map[string]*article.Article),
		subs:  make(map[*feed]struct{}),
		now:   time.Now,
	}
}

func (m *MemoryRepo) Create(ctx context.Context, a *article.Article) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, exists := m.store[a.ID]; exists {
		return "", errors.New("article id already exists")
	}
	a.CreatedAt = m.now().UTC()
	a.UpdatedAt = nil
	cp := *a
	m.store[a.ID] = &cp
	m.order = append(m.order, a.ID)
	m.publishLocked()
	return a.ID, nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*article.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.store[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) List(ctx context.Context) ([]article.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(), nil
}

func (m *MemoryRepo) Update(ctx context.Context, id string, p article.Patch) (*article.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Apply(a, m.now().UTC())
	m.publishLocked()
	cp := *a
	return &cp, nil
}

func (m *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.publishLocked()
	return nil
}

// Subscribe registers a live subscriber and immediately delivers the current
// snapshot. The subscription ends when ctx is done or Close is called.
func (m *MemoryRepo) Subscribe(ctx context.Context) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var f *feed
	f = newFeed(func() {
		m.mu.Lock()
		delete(m.subs, f)
		m.mu.Unlock()
	})

	m.mu.Lock()
	f.push(article.SnapshotEvent(m.snapshotLocked()))
	m.subs[f] = struct{}{}
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = f.Close()
		case <-f.done:
		}
	}()
	return f, nil
}

// Subscribers reports how many live subscriptions are open.
func (m *MemoryRepo) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

func (m *MemoryRepo) snapshotLocked() []article.Article {
	out := make([]article.Article, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.store[id])
	}
	return out
}

func (m *MemoryRepo) publishLocked() {
	if len(m.subs) == 0 {
		return
	}
	snap := m.snapshotLocked()
	for f := range m.subs {
		f.push(article.SnapshotEvent(snap))
	}
}
