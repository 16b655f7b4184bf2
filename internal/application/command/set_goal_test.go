package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/savings"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/keylock"
)

const testUserID = shared.UserID("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")

// ──────────────────────────────────────────────────────────────────────────────
// Fakes (shared across command tests)
// ──────────────────────────────────────────────────────────────────────────────

type fakeGoalRepo struct {
	goal  *achievement.Goal
	saves int
}

func (r *fakeGoalRepo) Save(ctx context.Context, goal *achievement.Goal) error {
	r.goal = goal
	r.saves++
	return nil
}

func (r *fakeGoalRepo) Get(ctx context.Context, userID shared.UserID) (*achievement.Goal, error) {
	if r.goal == nil {
		return nil, shared.ErrGoalNotFound
	}
	return r.goal, nil
}

func (r *fakeGoalRepo) Update(ctx context.Context, goal *achievement.Goal) error {
	r.goal = goal
	r.saves++
	return nil
}

func (r *fakeGoalRepo) MarkAchieved(ctx context.Context, goal *achievement.Goal) error {
	r.goal = goal
	return nil
}

type fakeSavingsRepo struct {
	position *savings.Position
	saves    int
}

func (r *fakeSavingsRepo) Save(ctx context.Context, p *savings.Position) error {
	r.position = p
	r.saves++
	return nil
}

func (r *fakeSavingsRepo) Get(ctx context.Context, userID shared.UserID) (*savings.Position, error) {
	if r.position == nil {
		return nil, shared.ErrPositionNotFound
	}
	return r.position, nil
}

type stubClassifier struct {
	tier level.Tier
}

func (s *stubClassifier) RecomputeLevel(ctx context.Context, userID shared.UserID) (level.Tier, error) {
	return s.tier, nil
}

func (s *stubClassifier) GetLevelValue(ctx context.Context, userID shared.UserID) (level.Tier, error) {
	return s.tier, nil
}

type captureBus struct {
	events []shared.Event
}

func (b *captureBus) Publish(event shared.Event) error {
	b.events = append(b.events, event)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestSetGoalHandler_CreatesNewGoal(t *testing.T) {
	ctx := context.Background()
	repo := &fakeGoalRepo{}
	bus := &captureBus{}
	handler := NewSetGoalHandler(repo, bus, keylock.New())

	deadline := time.Now().UTC().Add(30 * 24 * time.Hour)

	result, err := handler.Handle(ctx, SetGoalCommand{
		UserID:       testUserID,
		TargetAmount: 1000,
		Deadline:     &deadline,
	})
	require.NoError(t, err)

	assert.False(t, result.Replaced)
	assert.Equal(t, shared.Amount(1000), result.Goal.TargetAmount)
	assert.Equal(t, shared.Amount(0), result.Goal.SavedAmount)
	require.NotNil(t, repo.goal)

	require.Len(t, bus.events, 1)
	assert.Equal(t, shared.EventGoalSet, bus.events[0].EventType())
}

func TestSetGoalHandler_ReplaceKeepsEscrow(t *testing.T) {
	ctx := context.Background()
	existing, err := achievement.NewGoal(testUserID, 500, nil)
	require.NoError(t, err)
	_, err = existing.DepositEscrow(200)
	require.NoError(t, err)

	repo := &fakeGoalRepo{goal: existing}
	handler := NewSetGoalHandler(repo, &captureBus{}, keylock.New())

	result, err := handler.Handle(ctx, SetGoalCommand{
		UserID:       testUserID,
		TargetAmount: 2000,
	})
	require.NoError(t, err)

	assert.True(t, result.Replaced)
	assert.Equal(t, shared.Amount(2000), result.Goal.TargetAmount)

	// Эскроу переживает замену, терминальный флаг сброшен.
	assert.Equal(t, shared.Amount(200), result.Goal.SavedAmount)
	assert.False(t, result.Goal.Achieved)
}

func TestSetGoalHandler_Validation(t *testing.T) {
	ctx := context.Background()
	handler := NewSetGoalHandler(&fakeGoalRepo{}, &captureBus{}, keylock.New())

	_, err := handler.Handle(ctx, SetGoalCommand{UserID: testUserID, TargetAmount: 0})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = handler.Handle(ctx, SetGoalCommand{UserID: "nope", TargetAmount: 100})
	assert.Error(t, err)
}

func TestSetGoalHandler_ReentrancyGuard(t *testing.T) {
	ctx := context.Background()
	locks := keylock.New()
	handler := NewSetGoalHandler(&fakeGoalRepo{}, &captureBus{}, locks)

	// Другая операция уже держит ключ пользователя.
	require.True(t, locks.TryAcquire(testUserID.String()))

	_, err := handler.Handle(ctx, SetGoalCommand{UserID: testUserID, TargetAmount: 100})
	assert.ErrorIs(t, err, shared.ErrOperationInFlight)

	// После освобождения ключа команда проходит.
	locks.Release(testUserID.String())
	_, err = handler.Handle(ctx, SetGoalCommand{UserID: testUserID, TargetAmount: 100})
	assert.NoError(t, err)
	assert.False(t, locks.Held(testUserID.String()))
}
