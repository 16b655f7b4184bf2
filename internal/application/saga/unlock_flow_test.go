package saga

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/proof"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

const (
	testUserID   = shared.UserID("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	testCourseID = shared.CourseID("go-basics")
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeVerifier struct {
	err error
}

func (f *fakeVerifier) Verify(ctx context.Context, blob []byte) (shared.ProofID, error) {
	if f.err != nil {
		return shared.ProofID{}, f.err
	}
	return proof.ContentHash(blob), nil
}

func (f *fakeVerifier) IsVerified(ctx context.Context, id shared.ProofID) (bool, error) {
	return false, nil
}

type fakeGoalRepo struct {
	goal        *achievement.Goal
	markedCount int
	failMark    bool
}

func (r *fakeGoalRepo) Save(ctx context.Context, goal *achievement.Goal) error {
	r.goal = goal
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
	return nil
}

func (r *fakeGoalRepo) MarkAchieved(ctx context.Context, goal *achievement.Goal) error {
	if r.failMark {
		return errors.New("storage down")
	}
	r.goal = goal
	r.markedCount++
	return nil
}

type fakeCourseRepo struct {
	completion *achievement.CourseCompletion
	marked     *achievement.CourseCompletion
}

func (r *fakeCourseRepo) Get(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (*achievement.CourseCompletion, error) {
	if r.completion == nil {
		return nil, shared.ErrCourseNotFound
	}
	return r.completion, nil
}

func (r *fakeCourseRepo) ListByUser(ctx context.Context, userID shared.UserID) ([]*achievement.CourseCompletion, error) {
	if r.completion == nil {
		return nil, nil
	}
	return []*achievement.CourseCompletion{r.completion}, nil
}

func (r *fakeCourseRepo) MarkCompleted(ctx context.Context, completion *achievement.CourseCompletion) error {
	r.marked = completion
	return nil
}

type stubClassifier struct {
	current      level.Tier
	recomputed   level.Tier
	recomputeErr error
}

func (s *stubClassifier) RecomputeLevel(ctx context.Context, userID shared.UserID) (level.Tier, error) {
	if s.recomputeErr != nil {
		return level.TierBronze, s.recomputeErr
	}
	return s.recomputed, nil
}

func (s *stubClassifier) GetLevelValue(ctx context.Context, userID shared.UserID) (level.Tier, error) {
	return s.current, nil
}

type captureBus struct {
	events []shared.Event
}

func (b *captureBus) Publish(event shared.Event) error {
	b.events = append(b.events, event)
	return nil
}

func (b *captureBus) eventTypes() []shared.EventType {
	types := make([]shared.EventType, 0, len(b.events))
	for _, e := range b.events {
		types = append(types, e.EventType())
	}
	return types
}

// proofBlob собирает структурно корректный блоб; words записываются
// в младшие 8 байт 32-байтовых публичных входов.
func proofBlob(words ...uint64) []byte {
	blob := make([]byte, 4+32*len(words)+128)
	binary.BigEndian.PutUint32(blob[:4], uint32(len(words)))
	for i, w := range words {
		binary.BigEndian.PutUint64(blob[4+32*i+24:4+32*(i+1)], w)
	}
	for i := 4 + 32*len(words); i < len(blob); i++ {
		blob[i] = byte(i * 7)
	}
	return blob
}

func mustGoal(t *testing.T, target shared.Amount) *achievement.Goal {
	t.Helper()
	g, err := achievement.NewGoal(testUserID, target, nil)
	require.NoError(t, err)
	return g
}

// ──────────────────────────────────────────────────────────────────────────────
// Goal unlock
// ──────────────────────────────────────────────────────────────────────────────

func TestUnlockFlow_GoalHappyPath(t *testing.T) {
	ctx := context.Background()
	goals := &fakeGoalRepo{goal: mustGoal(t, 1000)}
	bus := &captureBus{}
	saga := NewUnlockFlowSaga(&fakeVerifier{}, goals, &fakeCourseRepo{},
		&stubClassifier{current: level.TierBronze, recomputed: level.TierBronze}, bus)

	blob := proofBlob(42)

	result, err := saga.Execute(ctx, UnlockInput{
		UserID:    testUserID,
		Kind:      UnlockGoal,
		ProofBlob: blob,
	})
	require.NoError(t, err)

	assert.Equal(t, proof.ContentHash(blob), result.ProofID)
	assert.True(t, goals.goal.Achieved)
	assert.Equal(t, 1, goals.markedCount)
	assert.False(t, result.TierChanged())

	assert.Equal(t, []shared.EventType{shared.EventAchievementUnlocked}, bus.eventTypes())
}

func TestUnlockFlow_GoalAlreadyAchieved(t *testing.T) {
	ctx := context.Background()
	goal := mustGoal(t, 1000)
	require.NoError(t, goal.MarkAchieved(proof.ContentHash([]byte("first"))))

	goals := &fakeGoalRepo{goal: goal}
	saga := NewUnlockFlowSaga(&fakeVerifier{}, goals, &fakeCourseRepo{},
		&stubClassifier{current: level.TierBronze, recomputed: level.TierBronze}, &captureBus{})

	_, err := saga.Execute(ctx, UnlockInput{
		UserID:    testUserID,
		Kind:      UnlockGoal,
		ProofBlob: proofBlob(1),
	})
	assert.ErrorIs(t, err, shared.ErrTerminalState)
	assert.Equal(t, 0, goals.markedCount)
}

func TestUnlockFlow_GoalNotFound(t *testing.T) {
	ctx := context.Background()
	saga := NewUnlockFlowSaga(&fakeVerifier{}, &fakeGoalRepo{}, &fakeCourseRepo{},
		&stubClassifier{}, &captureBus{})

	_, err := saga.Execute(ctx, UnlockInput{
		UserID:    testUserID,
		Kind:      UnlockGoal,
		ProofBlob: proofBlob(1),
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUnlockFlow_TierChangePublishesLevelEvent(t *testing.T) {
	ctx := context.Background()
	goals := &fakeGoalRepo{goal: mustGoal(t, 1000)}
	bus := &captureBus{}
	saga := NewUnlockFlowSaga(&fakeVerifier{}, goals, &fakeCourseRepo{},
		&stubClassifier{current: level.TierBronze, recomputed: level.TierSilver}, bus)

	result, err := saga.Execute(ctx, UnlockInput{
		UserID:    testUserID,
		Kind:      UnlockGoal,
		ProofBlob: proofBlob(7),
	})
	require.NoError(t, err)

	assert.True(t, result.TierChanged())
	assert.Equal(t, level.TierBronze, result.OldTier)
	assert.Equal(t, level.TierSilver, result.NewTier)
	assert.Equal(t,
		[]shared.EventType{shared.EventAchievementUnlocked, shared.EventLevelChanged},
		bus.eventTypes())
}

func TestUnlockFlow_RecomputeFailureKeepsUnlock(t *testing.T) {
	ctx := context.Background()
	goals := &fakeGoalRepo{goal: mustGoal(t, 1000)}
	bus := &captureBus{}
	saga := NewUnlockFlowSaga(&fakeVerifier{}, goals, &fakeCourseRepo{},
		&stubClassifier{current: level.TierSilver, recomputeErr: errors.New("storage down")}, bus)

	result, err := saga.Execute(ctx, UnlockInput{
		UserID:    testUserID,
		Kind:      UnlockGoal,
		ProofBlob: proofBlob(9),
	})
	require.NoError(t, err)

	// Флип долговечен, уровень догонит на следующем пересчёте.
	assert.True(t, goals.goal.Achieved)
	assert.False(t, result.TierChanged())
	assert.Equal(t, []shared.EventType{shared.EventAchievementUnlocked}, bus.eventTypes())
}

func TestUnlockFlow_VerifierFailureStopsFlow(t *testing.T) {
	ctx := context.Background()
	goals := &fakeGoalRepo{goal: mustGoal(t, 1000)}
	saga := NewUnlockFlowSaga(&fakeVerifier{err: shared.ErrInvalidProofFormat}, goals,
		&fakeCourseRepo{}, &stubClassifier{}, &captureBus{})

	_, err := saga.Execute(ctx, UnlockInput{
		UserID:    testUserID,
		Kind:      UnlockGoal,
		ProofBlob: []byte{1, 2, 3},
	})
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
	assert.False(t, goals.goal.Achieved)
}

// ──────────────────────────────────────────────────────────────────────────────
// Course unlock
// ──────────────────────────────────────────────────────────────────────────────

func TestUnlockFlow_CourseDecodesBadgeFromInputs(t *testing.T) {
	ctx := context.Background()
	courses := &fakeCourseRepo{}
	bus := &captureBus{}
	saga := NewUnlockFlowSaga(&fakeVerifier{}, &fakeGoalRepo{}, courses,
		&stubClassifier{current: level.TierBronze, recomputed: level.TierBronze}, bus)

	// score=90, passing=30: трёхкратный запас даёт Gold.
	result, err := saga.Execute(ctx, UnlockInput{
		UserID:    testUserID,
		Kind:      UnlockCourse,
		CourseID:  testCourseID,
		ProofBlob: proofBlob(90, 30),
	})
	require.NoError(t, err)

	assert.Equal(t, achievement.BadgeGold, result.Badge)
	require.NotNil(t, courses.marked)
	assert.True(t, courses.marked.Completed)
	assert.Equal(t, achievement.BadgeGold, courses.marked.BadgeLevel)
	assert.Equal(t, []shared.EventType{shared.EventCourseCompleted}, bus.eventTypes())
}

func TestUnlockFlow_CourseWithoutScoreWordsRejected(t *testing.T) {
	ctx := context.Background()
	courses := &fakeCourseRepo{}
	saga := NewUnlockFlowSaga(&fakeVerifier{}, &fakeGoalRepo{}, courses,
		&stubClassifier{current: level.TierBronze, recomputed: level.TierBronze}, &captureBus{})

	// Курсовой блоб обязан нести score и passing score.
	_, err := saga.Execute(ctx, UnlockInput{
		UserID:    testUserID,
		Kind:      UnlockCourse,
		CourseID:  testCourseID,
		ProofBlob: proofBlob(90),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidProofFormat)
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
	assert.Nil(t, courses.marked)
}

func TestUnlockFlow_CourseOverflowingScoreWordRejected(t *testing.T) {
	ctx := context.Background()
	courses := &fakeCourseRepo{}
	saga := NewUnlockFlowSaga(&fakeVerifier{}, &fakeGoalRepo{}, courses,
		&stubClassifier{current: level.TierBronze, recomputed: level.TierBronze}, &captureBus{})

	// Старшие 24 байта слова должны быть нулевыми.
	blob := proofBlob(90, 30)
	blob[4] = 0xff

	_, err := saga.Execute(ctx, UnlockInput{
		UserID:    testUserID,
		Kind:      UnlockCourse,
		CourseID:  testCourseID,
		ProofBlob: blob,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
	assert.Nil(t, courses.marked)
}

func TestUnlockFlow_CourseAlreadyCompleted(t *testing.T) {
	ctx := context.Background()
	done := achievement.NewCourseCompletion(testUserID, testCourseID)
	require.NoError(t, done.MarkCompleted(proof.ContentHash([]byte("first")), achievement.BadgeSilver))

	courses := &fakeCourseRepo{completion: done}
	saga := NewUnlockFlowSaga(&fakeVerifier{}, &fakeGoalRepo{}, courses,
		&stubClassifier{current: level.TierBronze, recomputed: level.TierBronze}, &captureBus{})

	_, err := saga.Execute(ctx, UnlockInput{
		UserID:    testUserID,
		Kind:      UnlockCourse,
		CourseID:  testCourseID,
		ProofBlob: proofBlob(50, 40),
	})
	assert.ErrorIs(t, err, shared.ErrTerminalState)
	assert.Nil(t, courses.marked)
}

// ──────────────────────────────────────────────────────────────────────────────
// Input validation
// ──────────────────────────────────────────────────────────────────────────────

func TestUnlockInput_Validate(t *testing.T) {
	valid := UnlockInput{
		UserID:    testUserID,
		Kind:      UnlockGoal,
		ProofBlob: proofBlob(1),
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		input UnlockInput
	}{
		{"invalid user", UnlockInput{UserID: "nope", Kind: UnlockGoal, ProofBlob: proofBlob(1)}},
		{"unknown kind", UnlockInput{UserID: testUserID, Kind: "badge", ProofBlob: proofBlob(1)}},
		{"course without id", UnlockInput{UserID: testUserID, Kind: UnlockCourse, ProofBlob: proofBlob(1)}},
		{"empty blob", UnlockInput{UserID: testUserID, Kind: UnlockGoal}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.input.Validate())
		})
	}
}
