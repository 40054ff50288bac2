package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" || environment == "test" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeyVoteCooldown builds the cooldown marker key for one client and debate
func (kb *KeyBuilder) KeyVoteCooldown(clientID, debateID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyVoteCooldown, clientID, debateID))
}

// KeyDebateTally builds the tally snapshot key for a debate
func (kb *KeyBuilder) KeyDebateTally(debateID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyDebateTally, debateID))
}

// KeyDebateRecord builds the cached debate record key
func (kb *KeyBuilder) KeyDebateRecord(debateID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyDebateRecord, debateID))
}
