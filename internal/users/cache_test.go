package users

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"debatelive/internal/domain"
	apperrors "debatelive/pkg/errors"
	"debatelive/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int64
	delay   time.Duration
	users   map[string]*domain.User
	missing map[string]bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		users:   make(map[string]*domain.User),
		missing: make(map[string]bool),
	}
}

func (f *fakeFetcher) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[userID] {
		return nil, apperrors.NewNotFoundError("user not found")
	}
	if user, ok := f.users[userID]; ok {
		return user, nil
	}
	return &domain.User{ID: userID, FirstName: "First", LastName: userID}, nil
}

func (f *fakeFetcher) callCount() int64 { return atomic.LoadInt64(&f.calls) }

func TestCache_GetCachesResult(t *testing.T) {
	fetcher := newFakeFetcher()
	cache := NewCache(fetcher, logger.Nop())
	ctx := context.Background()

	user, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)

	again, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Same(t, user, again)
	assert.Equal(t, int64(1), fetcher.callCount())
}

func TestCache_ConcurrentGetDeduplicates(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.delay = 50 * time.Millisecond
	cache := NewCache(fetcher, logger.Nop())
	ctx := context.Background()

	results := make(chan *domain.User, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, err := cache.Get(ctx, "u1")
			assert.NoError(t, err)
			results <- user
		}()
	}
	wg.Wait()
	close(results)

	assert.Equal(t, int64(1), fetcher.callCount(), "rapid duplicate lookups must cause one network call")

	// The loser of the race got nil; both eventually observe the same record
	resolved := cache.Peek("u1")
	require.NotNil(t, resolved)
	for user := range results {
		if user != nil {
			assert.Same(t, resolved, user)
		}
	}
}

func TestCache_PeekTriggersAsyncFetch(t *testing.T) {
	fetcher := newFakeFetcher()
	cache := NewCache(fetcher, logger.Nop())

	assert.Nil(t, cache.Peek("u1"), "first peek misses and triggers a fetch")

	require.Eventually(t, func() bool {
		return cache.Peek("u1") != nil
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "u1", cache.Peek("u1").ID)
}

func TestCache_LoadUsersForDebates(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.missing["ghost-user-9999"] = true
	cache := NewCache(fetcher, logger.Nop())

	alice, bob, ghost := "alice-id", "bob-id", "ghost-user-9999"
	debates := []domain.Debate{
		{ID: "d1", User1ID: &alice, User2ID: &bob},
		{ID: "d2", User1ID: &bob, User2ID: &ghost},
		{ID: "d3", User1ID: &alice},
	}

	cache.LoadUsersForDebates(context.Background(), debates)

	// Three unique ids, three fetches, despite five references
	assert.Equal(t, int64(3), fetcher.callCount())
	assert.Equal(t, 3, cache.Size())

	// Unresolvable id got a deterministic fallback and is never re-fetched
	fallback := cache.Peek(ghost)
	require.NotNil(t, fallback)
	assert.Equal(t, "User ghost-us", fallback.FullName())

	cache.LoadUsersForDebates(context.Background(), debates)
	assert.Equal(t, int64(3), fetcher.callCount())
}

func TestCache_Clear(t *testing.T) {
	fetcher := newFakeFetcher()
	cache := NewCache(fetcher, logger.Nop())
	ctx := context.Background()

	_, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Size())

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
	assert.Nil(t, cache.Peek("u1"))
}

func TestCache_EmptyIDIsIgnored(t *testing.T) {
	fetcher := newFakeFetcher()
	cache := NewCache(fetcher, logger.Nop())

	assert.Nil(t, cache.Peek(""))
	user, err := cache.Get(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, user)
	assert.Equal(t, int64(0), fetcher.callCount())
}
