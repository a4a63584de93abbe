package iam

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"
)

// State of the Refresher.
type State int

const (
	StateIdle State = iota
	StateRefreshing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Exchanger trades an API key for an access token.
type Exchanger interface {
	Exchange(ctx context.Context, apiKey string) (*oauth2.Token, error)
}

// DefaultBackoff bounds the retries after a failed exchange.
var DefaultBackoff = wait.Backoff{
	Duration: 5 * time.Second,
	Factor:   2,
	Jitter:   0.1,
	Steps:    6,
	Cap:      2 * time.Minute,
}

// Refresher renews the access token in the Store before it expires.
type Refresher struct {
	store    *Store
	exchange Exchanger
	apiKey   string
	clock    clock.Clock
	backoff  wait.Backoff
	logger   *zap.Logger
	notify   func(error)

	mu      sync.Mutex
	state   State
	next    time.Time
	lastErr error
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithClock sets the clock driving refresh timers.
func WithClock(c clock.Clock) RefresherOption {
	return func(r *Refresher) { r.clock = c }
}

// WithBackoff sets the retry backoff after failures.
func WithBackoff(b wait.Backoff) RefresherOption {
	return func(r *Refresher) { r.backoff = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RefresherOption {
	return func(r *Refresher) { r.logger = l }
}

// WithNotify registers a callback invoked after every exchange attempt with
// its result (nil on success).
func WithNotify(fn func(error)) RefresherOption {
	return func(r *Refresher) { r.notify = fn }
}

// NewRefresher creates a refresher for apiKey.
func NewRefresher(store *Store, exchange Exchanger, apiKey string, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		store:    store,
		exchange: exchange,
		apiKey:   apiKey,
		clock:    clock.RealClock{},
		backoff:  DefaultBackoff,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("refresher")
	return r
}

// State returns the current state.
func (r *Refresher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// NextRefresh returns when the next exchange is scheduled, zero when not running.
func (r *Refresher) NextRefresh() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// LastError returns the error of the last failed exchange.
func (r *Refresher) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Refresher) setState(s State, err error) {
	r.mu.Lock()
	r.state = s
	r.lastErr = err
	r.mu.Unlock()
}

// Authenticate performs one exchange and installs the result. On failure the
// error is recorded in the store and the refresher enters StateFailed.
func (r *Refresher) Authenticate(ctx context.Context) error {
	r.setState(StateRefreshing, nil)

	tok, err := r.exchange.Exchange(ctx, r.apiKey)
	if err != nil {
		r.store.Fail(err)
		r.setState(StateFailed, err)
		r.logger.Warn("token refresh failed", zap.Error(err))
		r.emit(err)
		return err
	}

	r.store.Install(tok.AccessToken, tok.Expiry)
	r.setState(StateIdle, nil)
	r.logger.Info("token refreshed", zap.Time("expiry", tok.Expiry))
	r.emit(nil)
	return nil
}

func (r *Refresher) emit(err error) {
	if r.notify != nil {
		r.notify(err)
	}
}

// untilRefresh is the wait before the token enters its safety margin.
func (r *Refresher) untilRefresh(now time.Time) time.Duration {
	d := r.store.Expiry().Add(-r.store.Margin()).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Run keeps the token fresh until ctx is cancelled. An exchange happens
// whenever the stored token is not valid; success schedules the next one at
// expiry minus the safety margin, failure retries with bounded backoff.
func (r *Refresher) Run(ctx context.Context) error {
	backoff := r.backoff
	defer func() {
		r.mu.Lock()
		r.next = time.Time{}
		r.mu.Unlock()
	}()

	for {
		var delay time.Duration
		if r.store.IsValid(r.clock.Now()) {
			delay = r.untilRefresh(r.clock.Now())
		} else if err := r.Authenticate(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay = backoff.Step()
		} else {
			backoff = r.backoff
			delay = r.untilRefresh(r.clock.Now())
			if delay == 0 {
				// Lifetime shorter than the margin.
				delay = backoff.Step()
			}
		}

		r.mu.Lock()
		r.next = r.clock.Now().Add(delay)
		r.mu.Unlock()
		r.logger.Debug("next token refresh scheduled", zap.Duration("in", delay))

		t := r.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C():
		}
	}
}
