package domain

import "fmt"

// User represents a resolved participant or audience member
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

// FullName returns the display name for the user
func (u *User) FullName() string {
	if u.FirstName == "" && u.LastName == "" {
		return "User " + shortID(u.ID)
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return fmt.Sprintf("%s %s", u.FirstName, u.LastName)
}

// FallbackUser synthesizes a deterministic placeholder for an identity the
// backend could not resolve, so repeated lookups stop re-fetching it
func FallbackUser(id string) *User {
	return &User{
		ID:        id,
		FirstName: "User " + shortID(id),
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
