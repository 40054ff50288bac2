package scheduler

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"debatelive/pkg/logger"
)

var (
	// ErrRefreshInFlight is returned when a refresh is already executing
	ErrRefreshInFlight = errors.New("scheduler: refresh already in flight")
	// ErrDebounced is returned when a refresh is skipped by the debounce floor
	ErrDebounced = errors.New("scheduler: refresh debounced")
)

// hiddenMultiplier stretches the polling interval while the host page is
// backgrounded
const hiddenMultiplier = 3

// RefreshFunc is the caller-supplied refresh operation
type RefreshFunc func(ctx context.Context) error

// Options configures a Scheduler
type Options struct {
	Interval          time.Duration
	Enabled           bool
	Immediate         bool
	MaxRetries        int
	BackoffMultiplier float64
	MinInterval       time.Duration
	MaxInterval       time.Duration
	DebounceFloor     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BackoffMultiplier <= 1 {
		o.BackoffMultiplier = 2
	}
	if o.MinInterval <= 0 {
		o.MinInterval = time.Second
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 60 * time.Second
	}
	if o.DebounceFloor <= 0 {
		o.DebounceFloor = time.Second
	}
	return o
}

// State is an observable snapshot of the scheduler
type State struct {
	LastAttempt time.Time
	Refreshing  bool
	RetryCount  int
	Err         error
}

// Scheduler runs a refresh operation on an adaptive interval. Ticks are
// strictly serialized, a debounce floor suppresses back-to-back refreshes,
// errors back off exponentially, and nothing is refreshed while hidden.
type Scheduler struct {
	opts    Options
	refresh RefreshFunc
	log     *logger.Logger

	mu          sync.Mutex
	onState     func(State)
	visible     bool
	inFlight    bool
	lastAttempt time.Time
	retryCount  int
	lastErr     error
	running     bool

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}
}

// New creates a scheduler for the given refresh operation
func New(opts Options, refresh RefreshFunc, log *logger.Logger) *Scheduler {
	return &Scheduler{
		opts:    opts.withDefaults(),
		refresh: refresh,
		log:     log,
		visible: true,
		wake:    make(chan struct{}, 1),
	}
}

// OnState registers a callback invoked after every refresh attempt
func (s *Scheduler) OnState(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// Start begins the polling loop. A disabled scheduler never runs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if !s.opts.Enabled || s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run()
	s.log.WithField("interval", s.opts.Interval.String()).Debug("Refresh scheduler started")
}

// Stop cancels the polling loop and waits for in-flight work to settle.
// No tick fires after Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Debug("Refresh scheduler stopped")
}

// SetVisible reports page visibility. While hidden the effective interval is
// tripled and no refresh is issued even when the timer fires.
func (s *Scheduler) SetVisible(visible bool) {
	s.mu.Lock()
	changed := s.visible != visible
	s.visible = visible
	s.mu.Unlock()

	if changed {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// ManualRefresh requests a refresh that still respects the debounce floor
func (s *Scheduler) ManualRefresh(ctx context.Context) error {
	return s.attempt(ctx, false)
}

// ForceRefresh bypasses the debounce floor and executes immediately. Its
// error surfaces to the caller without touching the retry counter.
func (s *Scheduler) ForceRefresh(ctx context.Context) error {
	return s.attempt(ctx, true)
}

// Snapshot returns the current observable state
func (s *Scheduler) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Scheduler) run() {
	defer close(s.done)

	if s.opts.Immediate {
		_ = s.attempt(s.ctx, false)
	}

	for {
		timer := time.NewTimer(s.nextDelay())
		select {
		case <-timer.C:
			if s.isVisible() {
				_ = s.attempt(s.ctx, false)
			}
		case <-s.wake:
			// visibility flipped, re-arm with the new effective interval
			timer.Stop()
		case <-s.ctx.Done():
			timer.Stop()
			return
		}
	}
}

// nextDelay computes the wait before the next tick: exponential backoff
// while retrying, otherwise the configured interval stretched when hidden
func (s *Scheduler) nextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retryCount > 0 && s.retryCount <= s.opts.MaxRetries {
		delay := time.Duration(float64(s.opts.MinInterval) *
			math.Pow(s.opts.BackoffMultiplier, float64(s.retryCount)))
		if delay > s.opts.MaxInterval {
			delay = s.opts.MaxInterval
		}
		return delay
	}

	delay := s.opts.Interval
	if !s.visible {
		delay *= hiddenMultiplier
	}
	return delay
}

// attempt runs the refresh at most once concurrently. Scheduled ticks and
// manual refreshes share the debounce floor; forced refreshes skip it.
func (s *Scheduler) attempt(ctx context.Context, force bool) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrRefreshInFlight
	}
	if !force && !s.lastAttempt.IsZero() && time.Since(s.lastAttempt) < s.opts.DebounceFloor {
		s.mu.Unlock()
		return ErrDebounced
	}
	s.inFlight = true
	s.lastAttempt = time.Now()
	s.mu.Unlock()

	err := s.refresh(ctx)

	s.mu.Lock()
	s.inFlight = false
	switch {
	case force:
		if err == nil {
			s.retryCount = 0
			s.lastErr = nil
		}
	case err != nil:
		s.retryCount++
		s.lastErr = err
	default:
		s.retryCount = 0
		s.lastErr = nil
	}
	state := s.stateLocked()
	onState := s.onState
	s.mu.Unlock()

	if err != nil && err != context.Canceled {
		s.log.WithFields(map[string]interface{}{
			"retry_count": state.RetryCount,
			"forced":      force,
		}).WithError(err).Warn("Refresh failed")
	}
	if onState != nil {
		onState(state)
	}
	return err
}

func (s *Scheduler) isVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *Scheduler) stateLocked() State {
	return State{
		LastAttempt: s.lastAttempt,
		Refreshing:  s.inFlight,
		RetryCount:  s.retryCount,
		Err:         s.lastErr,
	}
}
