package domain

import (
	"time"
)

// DebateStatus represents the lifecycle state of a debate
type DebateStatus string

const (
	StatusScheduled DebateStatus = "scheduled"
	StatusLive      DebateStatus = "live"
	StatusFinished  DebateStatus = "finished"
)

// IsTerminal reports whether the status permits no further transitions
func (s DebateStatus) IsTerminal() bool {
	return s == StatusFinished
}

// CanTransitionTo reports whether a status change is allowed.
// Transitions only move forward: scheduled -> live -> finished.
func (s DebateStatus) CanTransitionTo(next DebateStatus) bool {
	switch s {
	case StatusScheduled:
		return next == StatusLive || next == StatusFinished
	case StatusLive:
		return next == StatusFinished
	default:
		return false
	}
}

// Debate represents a timed, two-participant topic discussion with an
// audience-votable outcome. Records are owned by the remote backend; the
// engine holds read-through copies only.
type Debate struct {
	ID         string       `json:"id"`
	Topic      string       `json:"topic"`
	Status     DebateStatus `json:"status"`
	StartTime  *time.Time   `json:"start_time,omitempty"`
	EndTime    *time.Time   `json:"end_time,omitempty"`
	User1ID    *string      `json:"user1_id,omitempty"`
	User2ID    *string      `json:"user2_id,omitempty"`
	ScoreUser1 int          `json:"score_user1"`
	ScoreUser2 int          `json:"score_user2"`
	WinnerID   *string      `json:"winner_id,omitempty"`
}

// ParticipantIDs returns the non-nil participant references
func (d *Debate) ParticipantIDs() []string {
	ids := make([]string, 0, 2)
	if d.User1ID != nil && *d.User1ID != "" {
		ids = append(ids, *d.User1ID)
	}
	if d.User2ID != nil && *d.User2ID != "" {
		ids = append(ids, *d.User2ID)
	}
	return ids
}

// IsParticipant reports whether the given user occupies one of the two slots
func (d *Debate) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range d.ParticipantIDs() {
		if id == userID {
			return true
		}
	}
	return false
}

// Winner derives the winning participant from the scores. Returns nil on a
// tie or when a side has no registered participant.
func (d *Debate) Winner() *string {
	switch {
	case d.ScoreUser1 > d.ScoreUser2:
		return d.User1ID
	case d.ScoreUser2 > d.ScoreUser1:
		return d.User2ID
	default:
		return nil
	}
}

// Remaining returns the time left before the debate's end, never negative.
// A debate without an end time has no countdown.
func (d *Debate) Remaining(now time.Time) time.Duration {
	if d.EndTime == nil {
		return 0
	}
	remaining := d.EndTime.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
