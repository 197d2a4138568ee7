// Package listview keeps a live, in-memory copy of the article collection
// for a list page and carries out user-confirmed deletes.
//
// A ViewModel holds at most one subscription. Every snapshot replaces the
// whole list; nothing is merged and deletes are never applied locally, so the
// list only changes when the store says it did.
package listview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AbiyasX/FirebaseActt/internal/article"
	"github.com/AbiyasX/FirebaseActt/internal/article/repository"
	"github.com/AbiyasX/FirebaseActt/pkg/logger"
	"github.com/AbiyasX/FirebaseActt/pkg/metrics"
)

const (
	LoadErrorMessage   = "Failed to load articles"
	DeleteErrorMessage = "Could not delete article. Please try again."
)

var ErrAlreadyActive = errors.New("list view model already active")

var log = logger.Named("listview")

// Store is the part of the article store the list page needs.
type Store interface {
	Subscribe(ctx context.Context) (repository.Subscription, error)
	Delete(ctx context.Context, id string) error
}

// Confirmer asks the user to approve a destructive action and blocks until
// they answer.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Alerter shows a message to the user.
type Alerter interface {
	Alert(message string)
}

type AlertFunc func(message string)

func (f AlertFunc) Alert(message string) { f(message) }

// ConfirmPrompt is the question asked before deleting the article titled title.
func ConfirmPrompt(title string) string {
	return fmt.Sprintf("Delete \"%s\"?\n\nThis action cannot be undone.", title)
}

// State is a copy of the view model state. Articles keeps the order of the
// last snapshot.
type State struct {
	Articles []article.Article `json:"articles"`
	Loading  bool              `json:"loading"`
	Error    string            `json:"error,omitempty"`
	Active   bool              `json:"active"`
}

type RemoveResult int

const (
	RemoveCancelled RemoveResult = iota
	RemoveDeleted
	RemoveFailed
)

func (r RemoveResult) String() string {
	switch r {
	case RemoveCancelled:
		return "cancelled"
	case RemoveDeleted:
		return "deleted"
	case RemoveFailed:
		return "failed"
	}
	return "unknown"
}

type Option func(*ViewModel)

// WithConfirmer sets the confirmation prompt used by RemoveArticle. Without
// one every delete is treated as declined.
func WithConfirmer(c Confirmer) Option { return func(vm *ViewModel) { vm.confirm = c } }

func WithAlerter(a Alerter) Option { return func(vm *ViewModel) { vm.alert = a } }

// OnChange registers fn to receive the state after every change. fn runs on
// the subscription goroutine and must not call Deactivate.
func OnChange(fn func(State)) Option { return func(vm *ViewModel) { vm.onChange = fn } }

type ViewModel struct {
	store    Store
	confirm  Confirmer
	alert    Alerter
	onChange func(State)

	mu         sync.Mutex
	state      State
	gen        uint64
	cancel     context.CancelFunc
	sub        repository.Subscription
	done       chan struct{}
	subscribed bool
}

func New(store Store, opts ...Option) *ViewModel {
	vm := &ViewModel{store: store, state: State{Loading: true}}
	for _, o := range opts {
		o(vm)
	}
	return vm
}

// State returns a copy of the current state.
func (vm *ViewModel) State() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.copyStateLocked()
}

// Activate opens the collection subscription. It fails with ErrAlreadyActive
// if a subscription is already open. A failed subscribe is also recorded in
// the state as a load error.
func (vm *ViewModel) Activate(ctx context.Context) error {
	vm.mu.Lock()
	if vm.state.Active {
		vm.mu.Unlock()
		return ErrAlreadyActive
	}
	vm.gen++
	gen := vm.gen
	ctx, cancel := context.WithCancel(ctx)
	vm.cancel = cancel
	vm.state.Active = true
	vm.state.Loading = true
	vm.mu.Unlock()

	sub, err := vm.store.Subscribe(ctx)
	if err != nil {
		vm.apply(gen, article.ErrorEvent(err))
		vm.mu.Lock()
		if vm.gen == gen {
			vm.gen++
			vm.state.Active = false
			vm.cancel = nil
		}
		vm.mu.Unlock()
		cancel()
		return fmt.Errorf("subscribe to articles: %w", err)
	}

	vm.mu.Lock()
	if vm.gen != gen {
		// deactivated while subscribing
		vm.mu.Unlock()
		cancel()
		_ = sub.Close()
		return nil
	}
	done := make(chan struct{})
	vm.sub = sub
	vm.done = done
	vm.subscribed = true
	vm.mu.Unlock()

	metrics.ActiveSubscriptions.Inc()
	go vm.consume(ctx, gen, sub, done)
	return nil
}

// Deactivate cancels the subscription and waits until no further event can
// touch the state. Safe to call more than once.
func (vm *ViewModel) Deactivate() {
	vm.mu.Lock()
	if !vm.state.Active {
		vm.mu.Unlock()
		return
	}
	vm.gen++
	vm.state.Active = false
	cancel, sub, done, subscribed := vm.cancel, vm.sub, vm.done, vm.subscribed
	vm.cancel, vm.sub, vm.done, vm.subscribed = nil, nil, nil, false
	vm.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		_ = sub.Close()
	}
	if done != nil {
		<-done
	}
	if subscribed {
		metrics.ActiveSubscriptions.Dec()
	}
}

func (vm *ViewModel) consume(ctx context.Context, gen uint64, sub repository.Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if !vm.apply(gen, ev) {
				return
			}
		}
	}
}

// apply reduces one event into the state. It returns false when gen is no
// longer current, in which case the state is left alone.
func (vm *ViewModel) apply(gen uint64, ev article.Event) bool {
	vm.mu.Lock()
	if gen != vm.gen || !vm.state.Active {
		vm.mu.Unlock()
		return false
	}
	switch ev.Kind {
	case article.EventSnapshot:
		list := make([]article.Article, len(ev.Articles))
		copy(list, ev.Articles)
		vm.state.Articles = list
		vm.state.Error = ""
		vm.state.Loading = false
		metrics.SnapshotsApplied.Inc()
		log.Debugf("snapshot applied: %d articles", len(list))
	case article.EventError:
		// keep the last good list visible
		vm.state.Loading = false
		vm.state.Error = LoadErrorMessage
		metrics.SubscriptionErrors.Inc()
		log.Errorf("error fetching articles: %v", ev.Err)
	}
	st := vm.copyStateLocked()
	vm.mu.Unlock()

	if vm.onChange != nil {
		vm.onChange(st)
	}
	return true
}

// RemoveArticle deletes the article after the user confirms. The list is not
// edited locally: the article disappears when the next snapshot arrives.
// Deleting an article that is already gone counts as success.
func (vm *ViewModel) RemoveArticle(ctx context.Context, id, title string) (RemoveResult, error) {
	if vm.confirm == nil || !vm.confirm.Confirm(ctx, ConfirmPrompt(title)) {
		metrics.Deletes.WithLabelValues(RemoveCancelled.String()).Inc()
		return RemoveCancelled, nil
	}
	err := vm.store.Delete(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Errorf("delete error for %s: %v", id, err)
		if vm.alert != nil {
			vm.alert.Alert(DeleteErrorMessage)
		}
		metrics.Deletes.WithLabelValues(RemoveFailed.String()).Inc()
		return RemoveFailed, err
	}
	if err != nil {
		log.Warnf("article %s was already deleted", id)
	} else {
		log.Infof("article %s removed", id)
	}
	metrics.Deletes.WithLabelValues(RemoveDeleted.String()).Inc()
	return RemoveDeleted, nil
}

func (vm *ViewModel) copyStateLocked() State {
	st := vm.state
	if vm.state.Articles != nil {
		st.Articles = make([]article.Article, len(vm.state.Articles))
		copy(st.Articles, vm.state.Articles)
	}
	return st
}
