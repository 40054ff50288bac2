package voting

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"debatelive/internal/domain"
	apperrors "debatelive/pkg/errors"
	"debatelive/pkg/logger"
	"debatelive/pkg/redis"
)

// Backend is the slice of the remote gateway the coordinator needs
type Backend interface {
	GetVotes(ctx context.Context, debateID string) (*domain.VoteScores, error)
	SubmitVote(ctx context.Context, debateID string, side domain.VoteSide) (*domain.Debate, error)
}

// VoteStatus tracks this client's voting state for one debate
type VoteStatus struct {
	HasVoted   bool            `json:"has_voted"`
	VotedFor   domain.VoteSide `json:"voted_for,omitempty"`
	LastVoteAt time.Time       `json:"last_vote_at,omitempty"`
}

// DebateVotes is the observable vote state for one debate
type DebateVotes struct {
	Tally   domain.VoteTally `json:"tally"`
	Status  VoteStatus       `json:"status"`
	Loading bool             `json:"loading"`
	Err     string           `json:"error,omitempty"`
}

// Options configures a Coordinator
type Options struct {
	Cooldown time.Duration
	ClientID string
}

// Coordinator owns per-debate vote tallies and this client's vote
// eligibility. The cooldown gate is advisory UX, not a security control:
// the backend's scores stay authoritative and every successful call
// overwrites the cached tally from the server response.
type Coordinator struct {
	backend  Backend
	redis    *redis.Client // optional, nil degrades to in-memory markers
	cooldown time.Duration
	clientID string
	log      *logger.Logger

	mu         sync.Mutex
	states     map[string]*DebateVotes
	submitting map[string]bool
	observers  []func(debateID string)
}

// NewCoordinator creates a voting coordinator
func NewCoordinator(backend Backend, redisClient *redis.Client, opts Options, log *logger.Logger) *Coordinator {
	if opts.Cooldown <= 0 {
		opts.Cooldown = 20 * time.Second
	}
	if opts.ClientID == "" {
		opts.ClientID = "debatelive"
	}
	return &Coordinator{
		backend:    backend,
		redis:      redisClient,
		cooldown:   opts.Cooldown,
		clientID:   opts.ClientID,
		log:        log,
		states:     make(map[string]*DebateVotes),
		submitting: make(map[string]bool),
	}
}

// Subscribe registers a callback invoked after any debate's vote state
// changes
func (c *Coordinator) Subscribe(fn func(debateID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Votes returns a snapshot of the vote state for a debate. An untracked
// debate reports the 50/50 empty tally.
func (c *Coordinator) Votes(debateID string) DebateVotes {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.states[debateID]; ok {
		return *state
	}
	return DebateVotes{Tally: domain.ComputeTally(0, 0)}
}

// LoadVoteResults fetches the current authoritative scores. A transient
// failure stores the error message but leaves the prior tally intact.
func (c *Coordinator) LoadVoteResults(ctx context.Context, debateID string) error {
	c.withState(debateID, func(state *DebateVotes) {
		state.Loading = true
	})
	c.notify(debateID)

	scores, err := c.backend.GetVotes(ctx, debateID)
	if err != nil {
		c.log.WithField("debate_id", debateID).WithError(err).Warn("Failed to load vote results")
		c.withState(debateID, func(state *DebateVotes) {
			state.Loading = false
			state.Err = err.Error()
		})
		c.restoreTallyFromCache(debateID)
		c.notify(debateID)
		return err
	}

	tally := domain.ComputeTally(scores.ScoreUser1, scores.ScoreUser2)
	c.withState(debateID, func(state *DebateVotes) {
		state.Loading = false
		state.Err = ""
		state.Tally = tally
	})
	go c.cacheTallyAsync(debateID, tally)
	c.notify(debateID)
	return nil
}

// CanVote reports whether the cooldown gate allows a vote on the debate,
// and how long remains if it does not
func (c *Coordinator) CanVote(ctx context.Context, debateID string) (bool, time.Duration) {
	c.mu.Lock()
	state, ok := c.states[debateID]
	var lastVoteAt time.Time
	if ok {
		lastVoteAt = state.Status.LastVoteAt
	}
	c.mu.Unlock()

	if !lastVoteAt.IsZero() {
		elapsed := time.Since(lastVoteAt)
		if elapsed < c.cooldown {
			return false, c.cooldown - elapsed
		}
		return true, 0
	}

	// A restarted engine recovers its gate from the redis marker's TTL
	if c.redis != nil {
		key := c.redis.KeyBuilder.KeyVoteCooldown(c.clientID, debateID)
		if ttl, err := c.redis.TTL(ctx, key); err == nil && ttl > 0 {
			return false, ttl
		}
	}
	return true, 0
}

// Vote submits an audience vote for one side. The second of two overlapping
// submissions for the same debate is rejected immediately, and the cached
// tally is always overwritten from the server response.
func (c *Coordinator) Vote(ctx context.Context, debateID string, side domain.VoteSide) (DebateVotes, error) {
	if debateID == "" {
		return DebateVotes{}, apperrors.NewValidationError("debate id is required", nil)
	}
	if _, err := domain.ParseVoteSide(string(side)); err != nil {
		return DebateVotes{}, apperrors.NewValidationError(err.Error(), nil)
	}

	if ok, remaining := c.CanVote(ctx, debateID); !ok {
		return c.Votes(debateID), apperrors.NewRateLimitError(
			fmt.Sprintf("please wait %d seconds before voting again", int(remaining.Seconds())+1))
	}

	c.mu.Lock()
	if c.submitting[debateID] {
		c.mu.Unlock()
		return c.Votes(debateID), apperrors.NewRateLimitError("a vote for this debate is already being submitted")
	}
	c.submitting[debateID] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.submitting, debateID)
		c.mu.Unlock()
	}()

	debate, err := c.backend.SubmitVote(ctx, debateID, side)
	if err != nil {
		c.log.WithFields(map[string]interface{}{
			"debate_id": debateID,
			"side":      side,
		}).WithError(err).Warn("Vote submission failed")
		c.withState(debateID, func(state *DebateVotes) {
			state.Err = err.Error()
		})
		c.notify(debateID)
		return c.Votes(debateID), err
	}

	now := time.Now()
	tally := domain.ComputeTally(debate.ScoreUser1, debate.ScoreUser2)
	c.withState(debateID, func(state *DebateVotes) {
		state.Tally = tally
		state.Err = ""
		state.Status = VoteStatus{
			HasVoted:   true,
			VotedFor:   side,
			LastVoteAt: now,
		}
	})

	go c.persistCooldownAsync(debateID)
	go c.cacheTallyAsync(debateID, tally)
	c.notify(debateID)

	c.log.WithFields(map[string]interface{}{
		"debate_id": debateID,
		"side":      side,
		"total":     tally.Total,
	}).Info("Vote submitted")

	return c.Votes(debateID), nil
}

// withState mutates the tracked state for a debate, creating it on first use
func (c *Coordinator) withState(debateID string, mutate func(*DebateVotes)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.states[debateID]
	if !ok {
		state = &DebateVotes{Tally: domain.ComputeTally(0, 0)}
		c.states[debateID] = state
	}
	mutate(state)
}

func (c *Coordinator) notify(debateID string) {
	c.mu.Lock()
	observers := make([]func(string), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(debateID)
	}
}

// persistCooldownAsync writes the cooldown marker with a TTL equal to the
// gate so a restarted engine keeps gating
func (c *Coordinator) persistCooldownAsync(debateID string) {
	if c.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := c.redis.KeyBuilder.KeyVoteCooldown(c.clientID, debateID)
	if err := c.redis.Set(ctx, key, "1", c.cooldown); err != nil {
		c.log.WithField("debate_id", debateID).WithError(err).Warn("Failed to persist vote cooldown marker")
	}
}

func (c *Coordinator) cacheTallyAsync(debateID string, tally domain.VoteTally) {
	if c.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(tally)
	if err != nil {
		return
	}
	key := c.redis.KeyBuilder.KeyDebateTally(debateID)
	if err := c.redis.Set(ctx, key, string(data), redis.TTLTally); err != nil {
		c.log.WithField("debate_id", debateID).WithError(err).Debug("Failed to cache tally snapshot")
	}
}

// restoreTallyFromCache fills an empty tally from the last redis snapshot
// when the backend is unreachable. A tally already in memory is never
// replaced by the cache.
func (c *Coordinator) restoreTallyFromCache(debateID string) {
	if c.redis == nil {
		return
	}

	c.mu.Lock()
	state, ok := c.states[debateID]
	hasTally := ok && state.Tally.Total > 0
	c.mu.Unlock()
	if hasTally {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := c.redis.KeyBuilder.KeyDebateTally(debateID)
	data, err := c.redis.Get(ctx, key)
	if err != nil || data == "" {
		return
	}

	var tally domain.VoteTally
	if err := json.Unmarshal([]byte(data), &tally); err != nil {
		c.log.WithField("debate_id", debateID).WithError(err).Warn("Corrupted tally snapshot, ignoring")
		return
	}

	c.withState(debateID, func(state *DebateVotes) {
		state.Tally = tally
	})
	c.log.WithField("debate_id", debateID).Debug("Tally restored from cache snapshot")
}
