package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// DefaultRefreshInterval is the auto-refresh period.
const DefaultRefreshInterval = 30 * time.Second

// ErrSchedulerStopped is returned by commands sent after Run has returned.
var ErrSchedulerStopped = errors.New("refresh scheduler is not running")

// Refresher is what the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type schedulerOp int

const (
	opEnable schedulerOp = iota
	opDisable
	opTrigger
)

type schedulerCmd struct {
	op   schedulerOp
	done chan error
}

// Scheduler fires Refresh at a fixed interval. Timer fires and manual
// triggers are handled by one loop, so they never overlap, and a manual
// trigger pushes the next timer fire a full interval out.
type Scheduler struct {
	target   Refresher
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger
	onToggle func(bool)

	cmds    chan schedulerCmd
	stopped chan struct{}
	once    sync.Once

	mu      sync.Mutex
	enabled bool
	next    time.Time
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock sets the clock.
func WithSchedulerClock(c clock.Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(l *zap.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithEnabled sets the initial state.
func WithEnabled(enabled bool) SchedulerOption {
	return func(s *Scheduler) { s.enabled = enabled }
}

// WithToggleHook is called whenever the scheduler is enabled or disabled.
func WithToggleHook(fn func(bool)) SchedulerOption {
	return func(s *Scheduler) { s.onToggle = fn }
}

// NewScheduler creates a scheduler. It is enabled unless WithEnabled(false) is given.
func NewScheduler(target Refresher, interval time.Duration, opts ...SchedulerOption) *Scheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	s := &Scheduler{
		target:   target,
		interval: interval,
		clock:    clock.RealClock{},
		logger:   zap.NewNop(),
		enabled:  true,
		cmds:     make(chan schedulerCmd),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("scheduler")
	return s
}

// Interval returns the refresh period.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Enabled reports whether the timer is running.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// NextFire returns the next timer fire, zero when disabled.
func (s *Scheduler) NextFire() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Enable starts the timer and refreshes immediately. It returns the refresh error.
func (s *Scheduler) Enable(ctx context.Context) error { return s.send(ctx, opEnable) }

// Disable stops the timer. The current resource set is untouched.
func (s *Scheduler) Disable(ctx context.Context) error { return s.send(ctx, opDisable) }

// Trigger refreshes now and restarts the timer when enabled.
func (s *Scheduler) Trigger(ctx context.Context) error { return s.send(ctx, opTrigger) }

// Toggle flips the enabled state.
func (s *Scheduler) Toggle(ctx context.Context) error {
	if s.Enabled() {
		return s.Disable(ctx)
	}
	return s.Enable(ctx)
}

func (s *Scheduler) send(ctx context.Context, op schedulerOp) error {
	cmd := schedulerCmd{op: op, done: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
	case <-s.stopped:
		return ErrSchedulerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the scheduler loop. It returns when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.once.Do(func() { close(s.stopped) })

	var timer clock.Timer
	var fire <-chan time.Time

	disarm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, fire = nil, nil
		s.mu.Lock()
		s.next = time.Time{}
		s.mu.Unlock()
	}
	arm := func() {
		disarm()
		timer = s.clock.NewTimer(s.interval)
		fire = timer.C()
		s.mu.Lock()
		s.next = s.clock.Now().Add(s.interval)
		s.mu.Unlock()
	}

	if s.Enabled() {
		arm()
	}

	for {
		select {
		case <-ctx.Done():
			disarm()
			return ctx.Err()

		case <-fire:
			s.refresh(ctx)
			arm()

		case cmd := <-s.cmds:
			var err error
			switch cmd.op {
			case opEnable:
				s.setEnabled(true)
				err = s.refresh(ctx)
				arm()
			case opDisable:
				s.setEnabled(false)
				disarm()
			case opTrigger:
				err = s.refresh(ctx)
				if s.Enabled() {
					arm()
				}
			}
			cmd.done <- err
		}
	}
}

func (s *Scheduler) setEnabled(enabled bool) {
	s.mu.Lock()
	changed := s.enabled != enabled
	s.enabled = enabled
	s.mu.Unlock()
	if changed {
		s.logger.Info("auto refresh toggled", zap.Bool("enabled", enabled))
	}
	if s.onToggle != nil {
		s.onToggle(enabled)
	}
}

func (s *Scheduler) refresh(ctx context.Context) error {
	err := s.target.Refresh(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Debug("scheduled refresh failed", zap.Error(err))
	}
	return err
}
