package lifecycle

import (
	"context"
	"sync"
	"time"

	"debatelive/internal/domain"
	apperrors "debatelive/pkg/errors"
	"debatelive/pkg/logger"
)

// Finisher is the slice of the remote gateway the controller needs.
// FinishDebate must be idempotent: finishing an already-finished debate is
// a no-op at the collaborator boundary.
type Finisher interface {
	FinishDebate(ctx context.Context, debateID string) (*domain.Debate, error)
}

// Phase is the controller's internal lifecycle state
type Phase string

const (
	PhaseNotLive  Phase = "not_live"
	PhaseLive     Phase = "live"
	PhaseEnding   Phase = "ending"
	PhaseFinished Phase = "finished"
)

// finishTrigger identifies what requested the transition out of live
type finishTrigger string

const (
	triggerExpiry     finishTrigger = "countdown_expiry"
	triggerInactivity finishTrigger = "inactivity"
	triggerManual     finishTrigger = "manual"
)

// Options configures a Controller
type Options struct {
	CountdownTick     time.Duration
	InactivityTimeout time.Duration
	FinishTimeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.CountdownTick <= 0 {
		o.CountdownTick = 250 * time.Millisecond
	}
	if o.InactivityTimeout <= 0 {
		o.InactivityTimeout = 15 * time.Minute
	}
	if o.FinishTimeout <= 0 {
		o.FinishTimeout = 10 * time.Second
	}
	return o
}

// Snapshot is the observable state of one debate's lifecycle
type Snapshot struct {
	Phase     Phase               `json:"phase"`
	Status    domain.DebateStatus `json:"status"`
	Remaining time.Duration       `json:"remaining"`
}

// Controller drives a single debate toward automatic or manual termination.
// Countdown expiry and the inactivity timer both post to one finish-trigger
// channel; a phase check before the finish call makes the transition out of
// live effective at most once.
type Controller struct {
	debateID string
	finisher Finisher
	opts     Options
	log      *logger.Logger

	mu           sync.Mutex
	debate       domain.Debate
	phase        Phase
	expiryPosted bool
	onChange     func(Snapshot)
	inactivity   *time.Timer
	running      bool

	finishCh chan finishTrigger
	stopCh   chan struct{}
	done     chan struct{}
}

// NewController creates a controller for one debate
func NewController(debateID string, finisher Finisher, opts Options, log *logger.Logger) *Controller {
	return &Controller{
		debateID: debateID,
		finisher: finisher,
		opts:     opts.withDefaults(),
		log:      log.WithField("debate_id", debateID),
		phase:    PhaseNotLive,
		finishCh: make(chan finishTrigger, 2),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// OnChange registers a callback invoked whenever the snapshot changes
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Start begins the countdown loop
func (c *Controller) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()
	go c.run()
}

// Stop tears down every timer. No tick or finish fires after Stop returns.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.stopInactivityLocked()
	c.mu.Unlock()

	close(c.stopCh)
	<-c.done
}

// Update reconciles the controller with a freshly fetched debate record.
// Status never moves backward; a changed end time re-arms the countdown.
func (c *Controller) Update(debate domain.Debate) {
	c.mu.Lock()

	if c.debate.Status != "" && debate.Status != c.debate.Status &&
		!c.debate.Status.CanTransitionTo(debate.Status) {
		c.mu.Unlock()
		return
	}

	endTimeChanged := !equalTimePtr(c.debate.EndTime, debate.EndTime)
	c.debate = debate
	if endTimeChanged {
		c.expiryPosted = false
	}

	switch {
	case debate.Status == domain.StatusFinished:
		c.phase = PhaseFinished
		c.stopInactivityLocked()
	case debate.Status == domain.StatusLive && debate.EndTime != nil:
		if c.phase == PhaseNotLive {
			c.phase = PhaseLive
			c.armInactivityLocked()
		}
	default:
		if c.phase == PhaseLive {
			// lost its end time or dropped back before going live
			c.phase = PhaseNotLive
			c.stopInactivityLocked()
		}
	}
	c.mu.Unlock()
	c.notify()
}

// Touch records qualifying activity, restarting the inactivity timer
func (c *Controller) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseLive && c.inactivity != nil {
		c.inactivity.Reset(c.opts.InactivityTimeout)
	}
}

// EndDebate is the manual termination path. Only a registered participant
// may end the debate; ending an already-finished debate is a no-op. Unlike
// the automatic triggers, failures surface to the caller.
func (c *Controller) EndDebate(ctx context.Context, userID string) error {
	c.mu.Lock()
	if c.phase == PhaseFinished || c.debate.Status == domain.StatusFinished {
		c.mu.Unlock()
		return nil
	}
	if !c.debate.IsParticipant(userID) {
		c.mu.Unlock()
		return apperrors.NewAuthorizationError("only debate participants can end the debate")
	}
	c.mu.Unlock()

	return c.finish(ctx, triggerManual)
}

// Snapshot returns the current lifecycle state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Remaining returns the time left on the countdown
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.debate.Remaining(time.Now())
}

func (c *Controller) run() {
	ticker := time.NewTicker(c.opts.CountdownTick)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ticker.C:
			c.tick()
		case trig := <-c.finishCh:
			ctx, cancel := context.WithTimeout(context.Background(), c.opts.FinishTimeout)
			if err := c.finish(ctx, trig); err != nil {
				// best effort: the other participant's client or the
				// backend's own timeout may already be finishing it
				c.log.WithField("trigger", string(trig)).WithError(err).Warn("Automatic finish failed")
			}
			cancel()
		case <-c.stopCh:
			return
		}
	}
}

// tick recomputes the countdown and posts the expiry trigger exactly once
// when it reaches zero while still live
func (c *Controller) tick() {
	c.mu.Lock()
	if c.phase != PhaseLive || c.debate.Status != domain.StatusLive || c.debate.EndTime == nil {
		c.mu.Unlock()
		return
	}
	remaining := c.debate.Remaining(time.Now())
	shouldPost := remaining == 0 && !c.expiryPosted
	if shouldPost {
		c.expiryPosted = true
	}
	c.mu.Unlock()

	if shouldPost {
		c.post(triggerExpiry)
	}
	c.notify()
}

// finish performs the at-most-once transition out of live
func (c *Controller) finish(ctx context.Context, trig finishTrigger) error {
	c.mu.Lock()
	if c.phase != PhaseLive {
		c.mu.Unlock()
		return nil
	}
	c.phase = PhaseEnding
	c.mu.Unlock()
	c.notify()

	debate, err := c.finisher.FinishDebate(ctx, c.debateID)

	c.mu.Lock()
	if err != nil {
		// drop back to live so the next poll or trigger can reconcile
		c.phase = PhaseLive
		c.mu.Unlock()
		c.notify()
		return err
	}
	if debate != nil {
		c.debate = *debate
	}
	c.debate.Status = domain.StatusFinished
	c.phase = PhaseFinished
	c.stopInactivityLocked()
	c.mu.Unlock()
	c.notify()

	c.log.WithField("trigger", string(trig)).Info("Debate finished")
	return nil
}

func (c *Controller) post(trig finishTrigger) {
	select {
	case c.finishCh <- trig:
	default:
	}
}

func (c *Controller) armInactivityLocked() {
	c.stopInactivityLocked()
	c.inactivity = time.AfterFunc(c.opts.InactivityTimeout, func() {
		c.log.Debug("Inactivity timeout reached")
		c.post(triggerInactivity)
	})
}

func (c *Controller) stopInactivityLocked() {
	if c.inactivity != nil {
		c.inactivity.Stop()
		c.inactivity = nil
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Phase:     c.phase,
		Status:    c.debate.Status,
		Remaining: c.debate.Remaining(time.Now()),
	}
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
