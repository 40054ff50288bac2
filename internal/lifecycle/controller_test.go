package lifecycle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"debatelive/internal/domain"
	apperrors "debatelive/pkg/errors"
	"debatelive/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinisher struct {
	calls   int64
	failFor int64 // fail the first N calls
}

func (f *fakeFinisher) FinishDebate(ctx context.Context, debateID string) (*domain.Debate, error) {
	n := atomic.AddInt64(&f.calls, 1)
	if n <= atomic.LoadInt64(&f.failFor) {
		return nil, apperrors.NewNetworkError("backend unreachable", nil)
	}
	return &domain.Debate{ID: debateID, Status: domain.StatusFinished}, nil
}

func (f *fakeFinisher) callCount() int64 { return atomic.LoadInt64(&f.calls) }

func liveDebate(id string, endsIn time.Duration) domain.Debate {
	end := time.Now().Add(endsIn)
	user1 := "alice-id"
	user2 := "bob-id"
	return domain.Debate{
		ID:      id,
		Status:  domain.StatusLive,
		EndTime: &end,
		User1ID: &user1,
		User2ID: &user2,
	}
}

func testOptions() Options {
	return Options{
		CountdownTick:     10 * time.Millisecond,
		InactivityTimeout: time.Minute,
		FinishTimeout:     time.Second,
	}
}

func TestController_CountdownExpiryFinishesExactlyOnce(t *testing.T) {
	finisher := &fakeFinisher{}
	c := NewController("d1", finisher, testOptions(), logger.Nop())
	c.Start()
	defer c.Stop()

	c.Update(liveDebate("d1", 150*time.Millisecond))
	assert.Greater(t, c.Remaining(), time.Duration(0))

	require.Eventually(t, func() bool {
		return c.Snapshot().Phase == PhaseFinished
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(1), finisher.callCount())
	assert.Equal(t, time.Duration(0), c.Remaining())

	// Give any stray triggers a chance to misfire
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), finisher.callCount())
}

func TestController_FinishIsIdempotent(t *testing.T) {
	finisher := &fakeFinisher{}
	c := NewController("d1", finisher, testOptions(), logger.Nop())
	c.Start()
	defer c.Stop()

	c.Update(liveDebate("d1", 50*time.Millisecond))
	require.Eventually(t, func() bool {
		return c.Snapshot().Phase == PhaseFinished
	}, time.Second, 10*time.Millisecond)

	// Manual end racing the auto-finish must be a silent no-op
	require.NoError(t, c.EndDebate(context.Background(), "alice-id"))
	require.NoError(t, c.EndDebate(context.Background(), "alice-id"))
	assert.Equal(t, int64(1), finisher.callCount())
	assert.Equal(t, domain.StatusFinished, c.Snapshot().Status)
}

func TestController_InactivityTimeoutEndsDebate(t *testing.T) {
	finisher := &fakeFinisher{}
	opts := testOptions()
	opts.InactivityTimeout = 80 * time.Millisecond
	c := NewController("d1", finisher, opts, logger.Nop())
	c.Start()
	defer c.Stop()

	c.Update(liveDebate("d1", time.Hour))

	require.Eventually(t, func() bool {
		return c.Snapshot().Phase == PhaseFinished
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), finisher.callCount())
}

func TestController_TouchResetsInactivityTimer(t *testing.T) {
	finisher := &fakeFinisher{}
	opts := testOptions()
	opts.InactivityTimeout = 100 * time.Millisecond
	c := NewController("d1", finisher, opts, logger.Nop())
	c.Start()
	defer c.Stop()

	c.Update(liveDebate("d1", time.Hour))

	// Keep touching more often than the timeout
	for i := 0; i < 6; i++ {
		time.Sleep(40 * time.Millisecond)
		c.Touch()
	}
	assert.Equal(t, int64(0), finisher.callCount())
	assert.Equal(t, PhaseLive, c.Snapshot().Phase)

	// Stop touching and the timer fires
	require.Eventually(t, func() bool {
		return c.Snapshot().Phase == PhaseFinished
	}, time.Second, 10*time.Millisecond)
}

func TestController_ManualEndRequiresParticipant(t *testing.T) {
	finisher := &fakeFinisher{}
	c := NewController("d1", finisher, testOptions(), logger.Nop())
	c.Start()
	defer c.Stop()

	c.Update(liveDebate("d1", time.Hour))

	err := c.EndDebate(context.Background(), "stranger-id")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAuthorization))
	assert.Equal(t, int64(0), finisher.callCount())

	require.NoError(t, c.EndDebate(context.Background(), "bob-id"))
	assert.Equal(t, int64(1), finisher.callCount())
	assert.Equal(t, PhaseFinished, c.Snapshot().Phase)
}

func TestController_ManualEndSurfacesFailure(t *testing.T) {
	finisher := &fakeFinisher{failFor: 1}
	c := NewController("d1", finisher, testOptions(), logger.Nop())
	c.Start()
	defer c.Stop()

	c.Update(liveDebate("d1", time.Hour))

	err := c.EndDebate(context.Background(), "alice-id")
	require.Error(t, err)
	assert.Equal(t, PhaseLive, c.Snapshot().Phase, "failed finish drops back to live")

	// Retry succeeds
	require.NoError(t, c.EndDebate(context.Background(), "alice-id"))
	assert.Equal(t, PhaseFinished, c.Snapshot().Phase)
}

func TestController_AutoFinishFailureIsSwallowed(t *testing.T) {
	finisher := &fakeFinisher{failFor: 100}
	c := NewController("d1", finisher, testOptions(), logger.Nop())
	c.Start()
	defer c.Stop()

	c.Update(liveDebate("d1", 50*time.Millisecond))

	require.Eventually(t, func() bool {
		return finisher.callCount() >= 1
	}, time.Second, 10*time.Millisecond)

	// The failure degraded silently; the controller is still live and the
	// next poll is expected to reconcile
	assert.Equal(t, PhaseLive, c.Snapshot().Phase)

	finished := domain.Debate{ID: "d1", Status: domain.StatusFinished}
	c.Update(finished)
	assert.Equal(t, PhaseFinished, c.Snapshot().Phase)
}

func TestController_StatusNeverMovesBackward(t *testing.T) {
	finisher := &fakeFinisher{}
	c := NewController("d1", finisher, testOptions(), logger.Nop())

	c.Update(domain.Debate{ID: "d1", Status: domain.StatusFinished, ScoreUser1: 3, ScoreUser2: 1})
	assert.Equal(t, PhaseFinished, c.Snapshot().Phase)

	// A stale poll result cannot resurrect the debate or change its scores
	c.Update(liveDebate("d1", time.Hour))
	snapshot := c.Snapshot()
	assert.Equal(t, PhaseFinished, snapshot.Phase)
	assert.Equal(t, domain.StatusFinished, snapshot.Status)
}

func TestController_StopCancelsTimers(t *testing.T) {
	finisher := &fakeFinisher{}
	opts := testOptions()
	opts.InactivityTimeout = 50 * time.Millisecond
	c := NewController("d1", finisher, opts, logger.Nop())
	c.Start()

	c.Update(liveDebate("d1", 80*time.Millisecond))
	c.Stop()

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int64(0), finisher.callCount(), "no finish may fire after Stop")

	// Stop is idempotent
	c.Stop()
}

func TestController_EndTimeChangeRearmsCountdown(t *testing.T) {
	finisher := &fakeFinisher{}
	c := NewController("d1", finisher, testOptions(), logger.Nop())
	c.Start()
	defer c.Stop()

	c.Update(liveDebate("d1", time.Hour))
	assert.Equal(t, PhaseLive, c.Snapshot().Phase)

	// Server shortened the debate
	c.Update(liveDebate("d1", 60*time.Millisecond))
	require.Eventually(t, func() bool {
		return c.Snapshot().Phase == PhaseFinished
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), finisher.callCount())
}
