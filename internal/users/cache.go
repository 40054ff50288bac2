package users

import (
	"context"
	"sync"
	"time"

	"debatelive/internal/domain"
	"debatelive/pkg/logger"
)

// Fetcher resolves user records from the backend
type Fetcher interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// Cache lazily resolves sparse participant references into full user
// records. Writes are cache-fill-only and the in-flight set prevents
// duplicate concurrent fetches for the same id. Instances are injectable so
// tests never share state.
type Cache struct {
	fetcher Fetcher
	log     *logger.Logger

	mu       sync.RWMutex
	users    map[string]*domain.User
	inFlight map[string]struct{}

	fetchTimeout time.Duration
}

// NewCache creates an empty resolution cache
func NewCache(fetcher Fetcher, log *logger.Logger) *Cache {
	return &Cache{
		fetcher:      fetcher,
		log:          log,
		users:        make(map[string]*domain.User),
		inFlight:     make(map[string]struct{}),
		fetchTimeout: 10 * time.Second,
	}
}

// Peek returns the cached user immediately, or nil while triggering an
// asynchronous fetch. Callers re-query once the fetch settles.
func (c *Cache) Peek(userID string) *domain.User {
	if userID == "" {
		return nil
	}

	c.mu.RLock()
	user, ok := c.users[userID]
	c.mu.RUnlock()
	if ok {
		return user
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
		defer cancel()
		if _, err := c.Get(ctx, userID); err != nil {
			c.log.WithField("user_id", userID).WithError(err).Debug("Background user fetch failed")
		}
	}()
	return nil
}

// Get resolves a user through the cache. A second caller arriving while the
// same id is already being fetched gets nil rather than a duplicate request.
func (c *Cache) Get(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, nil
	}

	c.mu.Lock()
	if user, ok := c.users[userID]; ok {
		c.mu.Unlock()
		return user, nil
	}
	if _, fetching := c.inFlight[userID]; fetching {
		c.mu.Unlock()
		return nil, nil
	}
	c.inFlight[userID] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, userID)
		c.mu.Unlock()
	}()

	user, err := c.fetcher.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.users[userID] = user
	c.mu.Unlock()
	return user, nil
}

// LoadUsersForDebates resolves every uncached participant reference across
// the given debates in parallel. Ids the backend cannot resolve are filled
// with a deterministic fallback so they are never re-fetched.
func (c *Cache) LoadUsersForDebates(ctx context.Context, debates []domain.Debate) {
	unique := make(map[string]struct{})
	for i := range debates {
		for _, id := range debates[i].ParticipantIDs() {
			unique[id] = struct{}{}
		}
	}

	missing := make([]string, 0, len(unique))
	c.mu.RLock()
	for id := range unique {
		if _, ok := c.users[id]; !ok {
			missing = append(missing, id)
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, id := range missing {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			user, err := c.Get(ctx, userID)
			if err == nil && user != nil {
				return
			}
			if err != nil {
				c.log.WithField("user_id", userID).WithError(err).Warn("Failed to resolve participant, caching fallback")
			}
			c.mu.Lock()
			if _, ok := c.users[userID]; !ok {
				c.users[userID] = domain.FallbackUser(userID)
			}
			c.mu.Unlock()
		}(id)
	}
	wg.Wait()
}

// Size returns the number of cached users
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.users)
}

// Clear empties the cache. This is the only invalidation mechanism.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = make(map[string]*domain.User)
}
