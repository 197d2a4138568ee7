package detailview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AbiyasX/FirebaseActt/internal/article"
	"github.com/AbiyasX/FirebaseActt/internal/article/repository"
	"github.com/AbiyasX/FirebaseActt/pkg/logger"
	"github.com/AbiyasX/FirebaseActt/pkg/metrics"
)

const (
	NotFoundMessage  = "Article not found"
	LoadErrorMessage = "Unable to load article"

	// RouteHome is where a not-found article redirects to.
	RouteHome = "/"
	// DefaultRedirectDelay is how long the not-found message stays up.
	DefaultRedirectDelay = 3 * time.Second
)

var log = logger.Named("detailview")

// Store is the part of the article store the detail page needs.
type Store interface {
	Get(ctx context.Context, id string) (*article.Article, error)
}

// Navigator moves the user to a named route.
type Navigator interface {
	Navigate(route string)
}

type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Scheduler runs fn once after d and returns a function that cancels it.
type Scheduler func(d time.Duration, fn func()) (cancel func() bool)

func timerScheduler(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeFound
	OutcomeNotFound
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	}
	return "none"
}

type State struct {
	ID      string           `json:"id"`
	Article *article.Article `json:"article,omitempty"`
	Loading bool             `json:"loading"`
	Error   string           `json:"error,omitempty"`
	Outcome Outcome          `json:"-"`
}

// Meta is the display metadata derived from an article.
type Meta struct {
	WordCount   int    `json:"wordCount"`
	ReadingTime string `json:"readingTime"`
	Created     string `json:"created,omitempty"`
	Updated     string `json:"updated,omitempty"`
}

// MetaFor derives the display metadata for a.
func MetaFor(a *article.Article) Meta {
	return Meta{
		WordCount:   article.WordCount(a.Description),
		ReadingTime: article.ReadingTime(a.Description),
		Created:     article.FormatLongDate(a.CreatedAt),
		Updated:     article.FormatOptionalLongDate(a.UpdatedAt),
	}
}

type Option func(*ViewModel)

// WithNavigator sets where the not-found redirect goes. Without one no
// redirect is scheduled.
func WithNavigator(n Navigator) Option { return func(vm *ViewModel) { vm.nav = n } }

func WithRedirectDelay(d time.Duration) Option { return func(vm *ViewModel) { vm.delay = d } }

func WithScheduler(s Scheduler) Option { return func(vm *ViewModel) { vm.schedule = s } }

// ViewModel backs the article detail page. Each Load issues one fetch; a
// later Load for another identifier supersedes it and any result of the
// older fetch is dropped.
type ViewModel struct {
	store    Store
	nav      Navigator
	delay    time.Duration
	schedule Scheduler

	mu             sync.Mutex
	state          State
	gen            uint64
	cancelRedirect func() bool
	closed         bool
}

func New(store Store, opts ...Option) *ViewModel {
	vm := &ViewModel{store: store, delay: DefaultRedirectDelay, schedule: timerScheduler}
	for _, o := range opts {
		o(vm)
	}
	return vm
}

func (vm *ViewModel) State() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	st := vm.state
	if st.Article != nil {
		cp := *st.Article
		st.Article = &cp
	}
	return st
}

// SetID loads id unless it is already the current identifier.
func (vm *ViewModel) SetID(ctx context.Context, id string) Outcome {
	vm.mu.Lock()
	same := vm.state.ID == id && vm.state.Outcome != OutcomeNone
	current := vm.state.Outcome
	vm.mu.Unlock()
	if same {
		return current
	}
	return vm.Load(ctx, id)
}

// Load fetches id once and records one of three outcomes.
func (vm *ViewModel) Load(ctx context.Context, id string) Outcome {
	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return OutcomeNone
	}
	vm.gen++
	gen := vm.gen
	vm.stopRedirectLocked()
	vm.state = State{ID: id, Loading: true}
	vm.mu.Unlock()

	a, err := vm.store.Get(ctx, id)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if gen != vm.gen || vm.closed {
		return OutcomeNone
	}
	vm.state.Loading = false
	switch {
	case err == nil && a != nil:
		cp := *a
		cp.ID = id
		vm.state.Article = &cp
		vm.state.Outcome = OutcomeFound
	case err == nil || errors.Is(err, repository.ErrNotFound):
		vm.state.Error = NotFoundMessage
		vm.state.Outcome = OutcomeNotFound
		vm.scheduleRedirectLocked(gen)
	default:
		log.Errorf("fetch error for %s: %v", id, err)
		vm.state.Error = LoadErrorMessage
		vm.state.Outcome = OutcomeFailed
	}
	metrics.DetailFetches.WithLabelValues(vm.state.Outcome.String()).Inc()
	return vm.state.Outcome
}

// RedirectPending reports whether a not-found redirect is scheduled.
func (vm *ViewModel) RedirectPending() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.cancelRedirect != nil
}

// RedirectDelay is the delay used for the not-found redirect.
func (vm *ViewModel) RedirectDelay() time.Duration { return vm.delay }

// Close cancels a pending redirect. Results that arrive later are ignored.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.closed = true
	vm.stopRedirectLocked()
}

func (vm *ViewModel) scheduleRedirectLocked(gen uint64) {
	if vm.nav == nil {
		return
	}
	vm.cancelRedirect = vm.schedule(vm.delay, func() {
		vm.mu.Lock()
		if gen != vm.gen || vm.closed {
			vm.mu.Unlock()
			return
		}
		vm.cancelRedirect = nil
		vm.mu.Unlock()
		vm.nav.Navigate(RouteHome)
	})
}

func (vm *ViewModel) stopRedirectLocked() {
	if vm.cancelRedirect != nil {
		vm.cancelRedirect()
		vm.cancelRedirect = nil
	}
}
