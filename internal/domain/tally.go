package domain

import (
	"fmt"
	"math"
)

// VoteSide identifies which participant slot a vote supports
type VoteSide string

const (
	SideUser1 VoteSide = "user1"
	SideUser2 VoteSide = "user2"
)

// ParseVoteSide validates a raw side value
func ParseVoteSide(raw string) (VoteSide, error) {
	switch VoteSide(raw) {
	case SideUser1:
		return SideUser1, nil
	case SideUser2:
		return SideUser2, nil
	default:
		return "", fmt.Errorf("invalid vote side %q: must be %q or %q", raw, SideUser1, SideUser2)
	}
}

// VoteScores carries the raw per-side counts as reported by the backend
type VoteScores struct {
	ScoreUser1 int `json:"score_user1"`
	ScoreUser2 int `json:"score_user2"`
}

// VoteTally is the derived view of a debate's vote state. Percentages always
// sum to exactly 100: side 2 receives the rounding remainder.
type VoteTally struct {
	User1        int `json:"user1"`
	User2        int `json:"user2"`
	Total        int `json:"total"`
	User1Percent int `json:"user1_percent"`
	User2Percent int `json:"user2_percent"`
}

// ComputeTally builds a tally from raw scores. With no votes both sides
// report 50 so the display never divides by zero.
func ComputeTally(user1Votes, user2Votes int) VoteTally {
	total := user1Votes + user2Votes
	tally := VoteTally{
		User1: user1Votes,
		User2: user2Votes,
		Total: total,
	}

	if total == 0 {
		tally.User1Percent = 50
		tally.User2Percent = 50
		return tally
	}

	tally.User1Percent = int(math.Round(float64(user1Votes) / float64(total) * 100))
	tally.User2Percent = 100 - tally.User1Percent
	return tally
}
