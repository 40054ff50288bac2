package service

import (
	"context"
	"sync"
	"time"

	"debatelive/internal/config"
	"debatelive/internal/domain"
	"debatelive/internal/lifecycle"
	"debatelive/internal/scheduler"
	"debatelive/internal/users"
	"debatelive/internal/voting"
	apperrors "debatelive/pkg/errors"
	"debatelive/pkg/logger"
	"debatelive/pkg/redis"
)

// debateSyncService wires the refresh scheduler, voting coordinator,
// per-debate lifecycle controllers and the user resolution cache into one
// engine over the remote gateway
type debateSyncService struct {
	gw     Gateway
	log    *logger.Logger
	users  *users.Cache
	voting *voting.Coordinator
	sched  *scheduler.Scheduler

	lcOpts lifecycle.Options

	mu          sync.RWMutex
	debates     map[string]domain.Debate
	order       []string
	controllers map[string]*lifecycle.Controller
	started     bool
}

// NewDebateSyncService creates the engine. The redis client may be nil; the
// voting coordinator then keeps its markers in memory only.
func NewDebateSyncService(gw Gateway, redisClient *redis.Client, cfg *config.Config, log *logger.Logger) DebateSyncService {
	s := &debateSyncService{
		gw:    gw,
		log:   log,
		users: users.NewCache(gw, log),
		voting: voting.NewCoordinator(gw, redisClient, voting.Options{
			Cooldown: cfg.VoteCooldown,
			ClientID: cfg.ClientID,
		}, log),
		lcOpts: lifecycle.Options{
			InactivityTimeout: cfg.InactivityTimeout,
		},
		debates:     make(map[string]domain.Debate),
		controllers: make(map[string]*lifecycle.Controller),
	}

	s.sched = scheduler.New(scheduler.Options{
		Interval:    cfg.PollInterval,
		Enabled:     true,
		Immediate:   true,
		MinInterval: cfg.MinPollInterval,
		MaxInterval: cfg.MaxPollInterval,
	}, s.refresh, log)

	return s
}

// Start begins background polling. The first poll is best-effort: a backend
// that is down at boot degrades silently and the scheduler retries.
func (s *debateSyncService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.sched.Start()
	s.log.Info("Debate sync engine started")
	return nil
}

// Stop shuts down the scheduler and every lifecycle controller
func (s *debateSyncService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	controllers := make([]*lifecycle.Controller, 0, len(s.controllers))
	for _, c := range s.controllers {
		controllers = append(controllers, c)
	}
	s.mu.Unlock()

	s.sched.Stop()
	for _, c := range controllers {
		c.Stop()
	}
	s.log.Info("Debate sync engine stopped")
	return nil
}

// refresh is the scheduler's operation: one full reconcile against the
// backend's debate list
func (s *debateSyncService) refresh(ctx context.Context) error {
	debates, err := s.gw.ListDebates(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.order = s.order[:0]
	seen := make(map[string]struct{}, len(debates))
	for _, d := range debates {
		s.debates[d.ID] = d
		s.order = append(s.order, d.ID)
		seen[d.ID] = struct{}{}
	}
	for id := range s.debates {
		if _, ok := seen[id]; !ok {
			delete(s.debates, id)
			if c, exists := s.controllers[id]; exists {
				go c.Stop()
				delete(s.controllers, id)
			}
		}
	}
	s.mu.Unlock()

	s.users.LoadUsersForDebates(ctx, debates)

	for _, d := range debates {
		s.reconcileLifecycle(d)
		if d.Status == domain.StatusLive {
			_ = s.voting.LoadVoteResults(ctx, d.ID)
		}
	}
	return nil
}

// reconcileLifecycle keeps one controller per live debate and retires
// controllers whose debates have finished
func (s *debateSyncService) reconcileLifecycle(d domain.Debate) {
	s.mu.Lock()
	controller, ok := s.controllers[d.ID]
	if !ok && d.Status == domain.StatusLive && d.EndTime != nil {
		controller = lifecycle.NewController(d.ID, s.gw, s.lcOpts, s.log)
		s.controllers[d.ID] = controller
		controller.Start()
	}
	s.mu.Unlock()

	if controller != nil {
		controller.Update(d)
	}
}

func (s *debateSyncService) Debates() []DebateView {
	s.mu.RLock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	s.mu.RUnlock()

	views := make([]DebateView, 0, len(ids))
	for _, id := range ids {
		if view, ok := s.Debate(id); ok {
			views = append(views, *view)
		}
	}
	return views
}

func (s *debateSyncService) Debate(debateID string) (*DebateView, bool) {
	s.mu.RLock()
	debate, ok := s.debates[debateID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	view := &DebateView{
		Debate:      debate,
		Votes:       s.voting.Votes(debateID),
		RemainingMS: debate.Remaining(time.Now()).Milliseconds(),
	}
	if debate.User1ID != nil {
		view.User1 = s.users.Peek(*debate.User1ID)
	}
	if debate.User2ID != nil {
		view.User2 = s.users.Peek(*debate.User2ID)
	}
	return view, true
}

func (s *debateSyncService) Vote(ctx context.Context, debateID string, side domain.VoteSide) (voting.DebateVotes, error) {
	state, err := s.voting.Vote(ctx, debateID, side)
	if err != nil {
		return state, err
	}
	s.touch(debateID)
	return state, nil
}

func (s *debateSyncService) EndDebate(ctx context.Context, debateID, userID string) error {
	s.mu.RLock()
	debate, known := s.debates[debateID]
	controller, tracked := s.controllers[debateID]
	s.mu.RUnlock()

	if !known {
		return apperrors.NewNotFoundError("debate not found")
	}
	if debate.Status == domain.StatusFinished {
		return nil
	}
	if !tracked {
		return apperrors.NewValidationError("debate is not live", nil)
	}

	if err := controller.EndDebate(ctx, userID); err != nil {
		return err
	}

	s.mu.Lock()
	debate.Status = domain.StatusFinished
	s.debates[debateID] = debate
	s.mu.Unlock()
	return nil
}

func (s *debateSyncService) Arguments(ctx context.Context, debateID string) ([]domain.Argument, error) {
	args, err := s.gw.ListArguments(ctx, debateID)
	if err != nil {
		return nil, err
	}
	for i := range args {
		if args[i].Author == nil && args[i].AuthorID != "" {
			args[i].Author = s.users.Peek(args[i].AuthorID)
		}
	}
	return args, nil
}

func (s *debateSyncService) PostArgument(ctx context.Context, debateID, text string) (*domain.Argument, error) {
	if text == "" {
		return nil, apperrors.NewValidationError("argument text is required", nil)
	}
	arg, err := s.gw.PostArgument(ctx, debateID, text)
	if err != nil {
		return nil, err
	}
	s.touch(debateID)
	return arg, nil
}

func (s *debateSyncService) User(userID string) *domain.User {
	return s.users.Peek(userID)
}

func (s *debateSyncService) SetVisible(visible bool) {
	s.sched.SetVisible(visible)
	s.log.WithField("visible", visible).Debug("Page visibility changed")
}

func (s *debateSyncService) Refresh(ctx context.Context, force bool) error {
	if force {
		return s.sched.ForceRefresh(ctx)
	}
	return s.sched.ManualRefresh(ctx)
}

func (s *debateSyncService) SyncState() scheduler.State {
	return s.sched.Snapshot()
}

func (s *debateSyncService) Remaining(debateID string) time.Duration {
	s.mu.RLock()
	controller, ok := s.controllers[debateID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return controller.Remaining()
}

// touch marks qualifying activity on a live debate, restarting its
// inactivity timer
func (s *debateSyncService) touch(debateID string) {
	s.mu.RLock()
	controller, ok := s.controllers[debateID]
	s.mu.RUnlock()
	if ok {
		controller.Touch()
	}
}
