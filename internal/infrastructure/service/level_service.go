package service

import (
	"context"
	"errors"

	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// LevelService implements level.Classifier on top of the achievement
// counters. Recomputation is pull-based: nothing here runs on a timer,
// callers decide when the stored tier is worth refreshing.
type LevelService struct {
	repo     level.Repository
	counters achievement.CounterReader
	cache    level.Cache
}

// NewLevelService creates a new LevelService.
// The cache is optional; pass nil to always read the Postgres record.
func NewLevelService(repo level.Repository, counters achievement.CounterReader, cache level.Cache) *LevelService {
	return &LevelService{
		repo:     repo,
		counters: counters,
		cache:    cache,
	}
}

// RecomputeLevel reads the achievement counters, classifies the tier,
// persists the record and warms the cache.
func (s *LevelService) RecomputeLevel(ctx context.Context, userID shared.UserID) (level.Tier, error) {
	counters, err := s.counters.Counters(ctx, userID)
	if err != nil {
		return level.TierBronze, shared.WrapError("level", "RecomputeLevel", shared.ErrExternalCall,
			"failed to read achievement counters", err)
	}

	lvl := level.NewUserLevel(userID, counters.GoalsAchieved, counters.CoursesCompleted)

	if err := s.repo.Save(ctx, lvl); err != nil {
		return level.TierBronze, shared.WrapError("level", "RecomputeLevel", shared.ErrExternalCall,
			"failed to persist user level", err)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, userID, lvl.Tier)
	}

	return lvl.Tier, nil
}

// GetLevelValue returns the last persisted tier without recomputing.
// Users that were never classified are Bronze.
func (s *LevelService) GetLevelValue(ctx context.Context, userID shared.UserID) (level.Tier, error) {
	if s.cache != nil {
		if tier, err := s.cache.Get(ctx, userID); err == nil {
			return tier, nil
		}
	}

	lvl, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrLevelNotFound) {
			return level.TierBronze, nil
		}
		return level.TierBronze, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, userID, lvl.Tier)
	}

	return lvl.Tier, nil
}
