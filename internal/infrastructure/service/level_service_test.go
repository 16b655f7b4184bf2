package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

const testUserID = shared.UserID("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")

type fakeLevelRepo struct {
	levels map[shared.UserID]*level.UserLevel
	fail   bool
}

func newFakeLevelRepo() *fakeLevelRepo {
	return &fakeLevelRepo{levels: make(map[shared.UserID]*level.UserLevel)}
}

func (r *fakeLevelRepo) Save(ctx context.Context, lvl *level.UserLevel) error {
	if r.fail {
		return errors.New("storage down")
	}
	r.levels[lvl.UserID] = lvl
	return nil
}

func (r *fakeLevelRepo) Get(ctx context.Context, userID shared.UserID) (*level.UserLevel, error) {
	if lvl, ok := r.levels[userID]; ok {
		return lvl, nil
	}
	return nil, shared.ErrLevelNotFound
}

type fakeCounterReader struct {
	goals   int
	courses int
	fail    bool
}

func (r *fakeCounterReader) AchievedGoalCount(ctx context.Context, userID shared.UserID) (int, error) {
	return r.goals, nil
}

func (r *fakeCounterReader) CompletedCourseCount(ctx context.Context, userID shared.UserID) (int, error) {
	return r.courses, nil
}

func (r *fakeCounterReader) Counters(ctx context.Context, userID shared.UserID) (*achievement.Counters, error) {
	if r.fail {
		return nil, errors.New("storage down")
	}
	return &achievement.Counters{
		UserID:           userID,
		GoalsAchieved:    r.goals,
		CoursesCompleted: r.courses,
	}, nil
}

type fakeLevelCache struct {
	tiers map[shared.UserID]level.Tier
	sets  int
}

func newFakeLevelCache() *fakeLevelCache {
	return &fakeLevelCache{tiers: make(map[shared.UserID]level.Tier)}
}

func (c *fakeLevelCache) Get(ctx context.Context, userID shared.UserID) (level.Tier, error) {
	if tier, ok := c.tiers[userID]; ok {
		return tier, nil
	}
	return level.TierBronze, shared.ErrNotFound
}

func (c *fakeLevelCache) Set(ctx context.Context, userID shared.UserID, tier level.Tier) error {
	c.tiers[userID] = tier
	c.sets++
	return nil
}

func (c *fakeLevelCache) Delete(ctx context.Context, userID shared.UserID) error {
	delete(c.tiers, userID)
	return nil
}

func TestLevelService_RecomputeLevel(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLevelRepo()
	cache := newFakeLevelCache()
	svc := NewLevelService(repo, &fakeCounterReader{goals: 6, courses: 2}, cache)

	tier, err := svc.RecomputeLevel(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, level.TierGold, tier)

	// Запись сохранена и кеш прогрет.
	stored, err := repo.Get(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, level.TierGold, stored.Tier)
	assert.Equal(t, 6, stored.GoalsAchieved)
	assert.Equal(t, level.TierGold, cache.tiers[testUserID])
}

func TestLevelService_RecomputeLevel_CounterFailure(t *testing.T) {
	ctx := context.Background()
	svc := NewLevelService(newFakeLevelRepo(), &fakeCounterReader{fail: true}, nil)

	_, err := svc.RecomputeLevel(ctx, testUserID)
	assert.ErrorIs(t, err, shared.ErrExternalCall)
}

func TestLevelService_GetLevelValue_NeverClassifiedIsBronze(t *testing.T) {
	ctx := context.Background()
	svc := NewLevelService(newFakeLevelRepo(), &fakeCounterReader{}, nil)

	tier, err := svc.GetLevelValue(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, level.TierBronze, tier)
}

func TestLevelService_GetLevelValue_CacheHitSkipsRepo(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLevelRepo()
	repo.fail = true
	cache := newFakeLevelCache()
	cache.tiers[testUserID] = level.TierPlatinum

	svc := NewLevelService(repo, &fakeCounterReader{}, cache)

	tier, err := svc.GetLevelValue(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, level.TierPlatinum, tier)
}

func TestLevelService_GetLevelValue_RepoFallbackWarmsCache(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLevelRepo()
	repo.levels[testUserID] = level.NewUserLevel(testUserID, 3, 0)
	cache := newFakeLevelCache()

	svc := NewLevelService(repo, &fakeCounterReader{}, cache)

	tier, err := svc.GetLevelValue(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, level.TierSilver, tier)
	assert.Equal(t, level.TierSilver, cache.tiers[testUserID])
}
