package service

import (
	"context"
	"time"

	"debatelive/internal/domain"
	"debatelive/internal/scheduler"
	"debatelive/internal/voting"
)

// Gateway aggregates the remote backend operations the engine depends on
type Gateway interface {
	ListDebates(ctx context.Context) ([]domain.Debate, error)
	GetDebate(ctx context.Context, debateID string) (*domain.Debate, error)
	ListArguments(ctx context.Context, debateID string) ([]domain.Argument, error)
	PostArgument(ctx context.Context, debateID, text string) (*domain.Argument, error)
	GetVotes(ctx context.Context, debateID string) (*domain.VoteScores, error)
	SubmitVote(ctx context.Context, debateID string, side domain.VoteSide) (*domain.Debate, error)
	FinishDebate(ctx context.Context, debateID string) (*domain.Debate, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// DebateView is the composed read model handed to the presentation layer
type DebateView struct {
	Debate      domain.Debate      `json:"debate"`
	Votes       voting.DebateVotes `json:"votes"`
	User1       *domain.User       `json:"user1,omitempty"`
	User2       *domain.User       `json:"user2,omitempty"`
	RemainingMS int64              `json:"remaining_ms"`
}

// DebateSyncService defines the interface for the live-debate sync engine
type DebateSyncService interface {
	// Start begins background polling and lifecycle tracking
	Start(ctx context.Context) error

	// Stop gracefully shuts down the engine and every tracked debate
	Stop(ctx context.Context) error

	// Debates returns the current composed view of all known debates
	Debates() []DebateView

	// Debate returns the composed view of one debate
	Debate(debateID string) (*DebateView, bool)

	// Vote submits an audience vote through the voting coordinator
	Vote(ctx context.Context, debateID string, side domain.VoteSide) (voting.DebateVotes, error)

	// EndDebate manually terminates a live debate on behalf of a participant
	EndDebate(ctx context.Context, debateID, userID string) error

	// Arguments returns the argument feed for a debate
	Arguments(ctx context.Context, debateID string) ([]domain.Argument, error)

	// PostArgument appends to a debate's discussion and counts as activity
	PostArgument(ctx context.Context, debateID, text string) (*domain.Argument, error)

	// User returns a cached user record, triggering resolution when missing
	User(userID string) *domain.User

	// SetVisible reports SPA page visibility to the refresh scheduler
	SetVisible(visible bool)

	// Refresh runs an on-demand refresh, forced or debounced
	Refresh(ctx context.Context, force bool) error

	// SyncState exposes the scheduler's observable state
	SyncState() scheduler.State

	// Remaining returns the countdown for a live debate
	Remaining(debateID string) time.Duration
}
