package listview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AbiyasX/FirebaseActt/internal/article"
	"github.com/AbiyasX/FirebaseActt/internal/article/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSub hands events to the view model one at a time.
type fakeSub struct {
	ch     chan article.Event
	closed chan struct{}
	once   sync.Once
}

func newFakeSub() *fakeSub {
	return &fakeSub{ch: make(chan article.Event), closed: make(chan struct{})}
}

func (s *fakeSub) Events() <-chan article.Event { return s.ch }

func (s *fakeSub) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// send returns false when nobody received ev within a short wait.
func (s *fakeSub) send(ev article.Event) bool {
	select {
	case s.ch <- ev:
		return true
	case <-s.closed:
		return false
	case <-time.After(200 * time.Millisecond):
		return false
	}
}

type fakeStore struct {
	mu           sync.Mutex
	sub          *fakeSub
	subscribeErr error
	subscribes   int
	deleteErr    error
	deleted      []string
}

func (f *fakeStore) Subscribe(ctx context.Context) (repository.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.sub = newFakeSub()
	return f.sub, nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func snapshot(titles ...string) article.Event {
	list := make([]article.Article, 0, len(titles))
	for _, t := range titles {
		list = append(list, article.Article{ID: "id-" + t, Title: t})
	}
	return article.SnapshotEvent(list)
}

func titles(st State) []string {
	out := make([]string, 0, len(st.Articles))
	for _, a := range st.Articles {
		out = append(out, a.Title)
	}
	return out
}

func newObserved(store Store, opts ...Option) (*ViewModel, chan State) {
	changes := make(chan State, 16)
	opts = append(opts, OnChange(func(st State) { changes <- st }))
	return New(store, opts...), changes
}

func waitState(t *testing.T, changes chan State) State {
	t.Helper()
	select {
	case st := <-changes:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state change")
	}
	return State{}
}

func TestActivate_EachSnapshotReplacesList(t *testing.T) {
	store := &fakeStore{}
	vm, changes := newObserved(store)
	require.True(t, vm.State().Loading)
	require.NoError(t, vm.Activate(context.Background()))
	defer vm.Deactivate()

	seq := [][]string{
		{"a", "b", "c"},
		{"c", "a"},
		{},
		{"z", "y", "x", "w"},
	}
	for _, want := range seq {
		require.True(t, store.sub.send(snapshot(want...)))
		st := waitState(t, changes)
		assert.Equal(t, want, titles(st))
		assert.False(t, st.Loading)
		assert.Empty(t, st.Error)
		assert.Equal(t, want, titles(vm.State()))
	}
}

func TestActivate_OpensOneSubscription(t *testing.T) {
	store := &fakeStore{}
	vm := New(store)
	require.NoError(t, vm.Activate(context.Background()))
	defer vm.Deactivate()
	require.ErrorIs(t, vm.Activate(context.Background()), ErrAlreadyActive)
	require.Equal(t, 1, store.subscribes)
	require.True(t, vm.State().Active)
}

func TestSubscriptionError_KeepsLastList(t *testing.T) {
	store := &fakeStore{}
	vm, changes := newObserved(store)
	require.NoError(t, vm.Activate(context.Background()))
	defer vm.Deactivate()

	require.True(t, store.sub.send(snapshot("a", "b")))
	waitState(t, changes)

	require.True(t, store.sub.send(article.ErrorEvent(errors.New("permission denied"))))
	st := waitState(t, changes)
	assert.Equal(t, LoadErrorMessage, st.Error)
	assert.False(t, st.Loading)
	assert.Equal(t, []string{"a", "b"}, titles(st))

	// a later snapshot clears the error
	require.True(t, store.sub.send(snapshot("c")))
	st = waitState(t, changes)
	assert.Empty(t, st.Error)
	assert.Equal(t, []string{"c"}, titles(st))
}

func TestActivate_SubscribeFailure(t *testing.T) {
	store := &fakeStore{subscribeErr: errors.New("unavailable")}
	vm := New(store)
	err := vm.Activate(context.Background())
	require.Error(t, err)

	st := vm.State()
	assert.False(t, st.Loading)
	assert.False(t, st.Active)
	assert.Equal(t, LoadErrorMessage, st.Error)
	assert.Nil(t, st.Articles)

	// can retry after a failure
	store.subscribeErr = nil
	require.NoError(t, vm.Activate(context.Background()))
	vm.Deactivate()
}

func TestDeactivate_StopsMutation(t *testing.T) {
	store := &fakeStore{}
	vm, changes := newObserved(store)
	require.NoError(t, vm.Activate(context.Background()))
	require.True(t, store.sub.send(snapshot("a")))
	waitState(t, changes)

	vm.mu.Lock()
	gen := vm.gen
	vm.mu.Unlock()

	vm.Deactivate()
	vm.Deactivate()
	require.False(t, vm.State().Active)

	// nobody consumes from the subscription any more
	require.False(t, store.sub.send(snapshot("b")))
	// an event that was already in flight is dropped
	require.False(t, vm.apply(gen, snapshot("late")))
	assert.Equal(t, []string{"a"}, titles(vm.State()))
	select {
	case st := <-changes:
		t.Fatalf("unexpected state change after deactivate: %+v", st)
	default:
	}
}

func TestDeactivate_WithMemoryRepo(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	_, err := repo.Create(ctx, &article.Article{Title: "one"})
	require.NoError(t, err)

	vm, changes := newObserved(repo)
	require.NoError(t, vm.Activate(ctx))
	st := waitState(t, changes)
	require.Equal(t, []string{"one"}, titles(st))

	_, err = repo.Create(ctx, &article.Article{Title: "two"})
	require.NoError(t, err)
	st = waitState(t, changes)
	require.Equal(t, []string{"one", "two"}, titles(st))

	vm.Deactivate()
	require.Eventually(t, func() bool { return repo.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)

	_, err = repo.Create(ctx, &article.Article{Title: "three"})
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two"}, titles(vm.State()))
}

func TestRemoveArticle_Denied(t *testing.T) {
	store := &fakeStore{}
	var prompts []string
	vm := New(store, WithConfirmer(ConfirmFunc(func(ctx context.Context, prompt string) bool {
		prompts = append(prompts, prompt)
		return false
	})))

	before := vm.State()
	res, err := vm.RemoveArticle(context.Background(), "id-1", "My Post")
	require.NoError(t, err)
	require.Equal(t, RemoveCancelled, res)
	require.Empty(t, store.deleted)
	require.Equal(t, before, vm.State())
	require.Equal(t, []string{"Delete \"My Post\"?\n\nThis action cannot be undone."}, prompts)
}

func TestRemoveArticle_NoConfirmerDeclines(t *testing.T) {
	store := &fakeStore{}
	vm := New(store)
	res, err := vm.RemoveArticle(context.Background(), "id-1", "x")
	require.NoError(t, err)
	require.Equal(t, RemoveCancelled, res)
	require.Empty(t, store.deleted)
}

func TestRemoveArticle_ConfirmedDoesNotEditListLocally(t *testing.T) {
	store := &fakeStore{}
	vm, changes := newObserved(store, WithConfirmer(ConfirmFunc(func(context.Context, string) bool { return true })))
	require.NoError(t, vm.Activate(context.Background()))
	defer vm.Deactivate()
	require.True(t, store.sub.send(snapshot("a", "b")))
	waitState(t, changes)

	res, err := vm.RemoveArticle(context.Background(), "id-a", "a")
	require.NoError(t, err)
	require.Equal(t, RemoveDeleted, res)
	require.Equal(t, []string{"id-a"}, store.deleted)
	// still visible until the store sends the next snapshot
	require.Equal(t, []string{"a", "b"}, titles(vm.State()))

	require.True(t, store.sub.send(snapshot("b")))
	st := waitState(t, changes)
	require.Equal(t, []string{"b"}, titles(st))
}

func TestRemoveArticle_FailureAlerts(t *testing.T) {
	store := &fakeStore{deleteErr: errors.New("network down")}
	var alerts []string
	vm := New(store,
		WithConfirmer(ConfirmFunc(func(context.Context, string) bool { return true })),
		WithAlerter(AlertFunc(func(msg string) { alerts = append(alerts, msg) })),
	)
	before := vm.State()
	res, err := vm.RemoveArticle(context.Background(), "id-1", "t")
	require.Error(t, err)
	require.Equal(t, RemoveFailed, res)
	require.Equal(t, []string{DeleteErrorMessage}, alerts)
	require.Equal(t, before, vm.State())
}

func TestRemoveArticle_AlreadyGoneIsSuccess(t *testing.T) {
	store := &fakeStore{deleteErr: repository.ErrNotFound}
	var alerts []string
	vm := New(store,
		WithConfirmer(ConfirmFunc(func(context.Context, string) bool { return true })),
		WithAlerter(AlertFunc(func(msg string) { alerts = append(alerts, msg) })),
	)
	res, err := vm.RemoveArticle(context.Background(), "gone", "t")
	require.NoError(t, err)
	require.Equal(t, RemoveDeleted, res)
	require.Empty(t, alerts)
}
