package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/AbiyasX/FirebaseActt/pkg/logger"
	"github.com/AbiyasX/FirebaseActt/pkg/metrics"
)

var log = logger.Named("auth")

// Login submits sign-in attempts to a Provider and refuses to start a second
// attempt for an email while the first is still outstanding.
type Login struct {
	provider Provider

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewLogin(p Provider) *Login {
	return &Login{provider: p, inFlight: map[string]struct{}{}}
}

// Submit signs in with email and password. It returns ErrInFlight without
// calling the provider when an attempt for the same email is pending.
func (l *Login) Submit(ctx context.Context, email, password string) (*Identity, error) {
	key := strings.ToLower(strings.TrimSpace(email))

	l.mu.Lock()
	if _, busy := l.inFlight[key]; busy {
		l.mu.Unlock()
		metrics.SignIns.WithLabelValues(Code(ErrInFlight)).Inc()
		return nil, ErrInFlight
	}
	l.inFlight[key] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.inFlight, key)
		l.mu.Unlock()
	}()

	id, err := l.provider.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		log.Warnf("sign-in failed for %s: %v", key, err)
		metrics.SignIns.WithLabelValues(Code(err)).Inc()
		return nil, err
	}
	metrics.SignIns.WithLabelValues("ok").Inc()
	return id, nil
}

// Pending reports whether an attempt for email is outstanding.
func (l *Login) Pending(email string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.inFlight[strings.ToLower(strings.TrimSpace(email))]
	return ok
}
