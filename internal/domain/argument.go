package domain

import "time"

// Argument is a single entry in a debate's live discussion. Arguments are
// append-only while the debate is live and immutable history once finished.
type Argument struct {
	ID        string    `json:"id"`
	DebateID  string    `json:"debate_id"`
	AuthorID  string    `json:"author_id"`
	Author    *User     `json:"author,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
