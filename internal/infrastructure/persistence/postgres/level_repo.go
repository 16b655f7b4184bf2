// Package postgres implements PostgreSQL persistence layer for Kopilka.
package postgres

import (
	"context"
	"fmt"

	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LevelRepository implements level.Repository for PostgreSQL.
type LevelRepository struct {
	conn *Connection
}

// NewLevelRepository creates a new LevelRepository.
func NewLevelRepository(conn *Connection) *LevelRepository {
	return &LevelRepository{conn: conn}
}

// Save creates or replaces the user's level record.
func (r *LevelRepository) Save(ctx context.Context, lvl *level.UserLevel) error {
	query := `
		INSERT INTO user_levels (
			user_id, tier, goals_achieved, courses_completed, last_updated
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			goals_achieved = EXCLUDED.goals_achieved,
			courses_completed = EXCLUDED.courses_completed,
			last_updated = EXCLUDED.last_updated
	`

	_, err := r.conn.Exec(ctx, query,
		lvl.UserID.String(),
		lvl.Tier.Int(),
		lvl.GoalsAchieved,
		lvl.CoursesCompleted,
		lvl.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to save user level: %w", err)
	}

	return nil
}

// Get returns the user's level record.
func (r *LevelRepository) Get(ctx context.Context, userID shared.UserID) (*level.UserLevel, error) {
	query := `
		SELECT user_id, tier, goals_achieved, courses_completed, last_updated
		FROM user_levels
		WHERE user_id = $1
	`

	var (
		lvl    level.UserLevel
		userid string
		tier   int
	)

	err := r.conn.QueryRow(ctx, query, userID.String()).Scan(
		&userid,
		&tier,
		&lvl.GoalsAchieved,
		&lvl.CoursesCompleted,
		&lvl.LastUpdated,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLevelNotFound
		}
		return nil, fmt.Errorf("failed to get user level: %w", err)
	}

	lvl.UserID = shared.UserID(userid)
	lvl.Tier = level.TierFromInt(tier)

	return &lvl, nil
}
