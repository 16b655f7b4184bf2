// Package postgres implements PostgreSQL persistence layer for Kopilka.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// GOAL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// GoalRepository implements achievement.GoalRepository for PostgreSQL.
type GoalRepository struct {
	conn *Connection
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(conn *Connection) *GoalRepository {
	return &GoalRepository{conn: conn}
}

// Save creates or replaces the user's goal. The escrow balance of an
// existing row survives the replacement; target, deadline and the
// achieved flag are taken from the new goal.
func (r *GoalRepository) Save(ctx context.Context, g *achievement.Goal) error {
	query := `
		INSERT INTO savings_goals (
			user_id, target_amount, deadline, saved_amount, achieved,
			proof_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			target_amount = EXCLUDED.target_amount,
			deadline = EXCLUDED.deadline,
			achieved = EXCLUDED.achieved,
			proof_id = EXCLUDED.proof_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query,
		g.UserID.String(),
		g.TargetAmount.Int64(),
		g.Deadline,
		g.SavedAmount.Int64(),
		g.Achieved,
		proofIDBytes(g.ProofID),
		g.CreatedAt,
		g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}

	return nil
}

// Get returns the user's goal.
func (r *GoalRepository) Get(ctx context.Context, userID shared.UserID) (*achievement.Goal, error) {
	query := `
		SELECT user_id, target_amount, deadline, saved_amount, achieved,
			   proof_id, created_at, updated_at
		FROM savings_goals
		WHERE user_id = $1
	`

	row := r.conn.QueryRow(ctx, query, userID.String())
	return scanGoal(row)
}

// Update updates an existing goal.
func (r *GoalRepository) Update(ctx context.Context, g *achievement.Goal) error {
	query := `
		UPDATE savings_goals SET
			target_amount = $1,
			deadline = $2,
			saved_amount = $3,
			achieved = $4,
			proof_id = $5,
			updated_at = $6
		WHERE user_id = $7
	`

	tag, err := r.conn.Exec(ctx, query,
		g.TargetAmount.Int64(),
		g.Deadline,
		g.SavedAmount.Int64(),
		g.Achieved,
		proofIDBytes(g.ProofID),
		g.UpdatedAt,
		g.UserID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrGoalNotFound
	}

	return nil
}

// MarkAchieved flips the terminal flag, records the proof id and bumps
// the user's goals_achieved counter. All three writes commit together;
// on any failure nothing changes.
func (r *GoalRepository) MarkAchieved(ctx context.Context, g *achievement.Goal) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		flipQuery := `
			UPDATE savings_goals SET
				achieved = TRUE,
				proof_id = $1,
				updated_at = $2
			WHERE user_id = $3 AND achieved = FALSE
		`

		tag, err := tx.Exec(ctx, flipQuery,
			proofIDBytes(g.ProofID),
			g.UpdatedAt,
			g.UserID.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to mark goal achieved: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Either the goal is missing or it is already terminal.
			var exists bool
			checkQuery := `SELECT EXISTS(SELECT 1 FROM savings_goals WHERE user_id = $1)`
			if err := tx.QueryRow(ctx, checkQuery, g.UserID.String()).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check goal existence: %w", err)
			}
			if !exists {
				return shared.ErrGoalNotFound
			}
			return shared.ErrAlreadyAchieved
		}

		counterQuery := `
			INSERT INTO achievement_counters (user_id, goals_achieved, courses_completed, updated_at)
			VALUES ($1, 1, 0, $2)
			ON CONFLICT (user_id) DO UPDATE SET
				goals_achieved = achievement_counters.goals_achieved + 1,
				updated_at = EXCLUDED.updated_at
		`

		if _, err := tx.Exec(ctx, counterQuery, g.UserID.String(), g.UpdatedAt); err != nil {
			return fmt.Errorf("failed to bump goal counter: %w", err)
		}

		return nil
	})
}

// scanGoal scans a goal row.
func scanGoal(row pgx.Row) (*achievement.Goal, error) {
	var (
		g          achievement.Goal
		userID     string
		target     int64
		saved      int64
		proofBytes []byte
	)

	err := row.Scan(
		&userID,
		&target,
		&g.Deadline,
		&saved,
		&g.Achieved,
		&proofBytes,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrGoalNotFound
		}
		return nil, fmt.Errorf("failed to scan goal: %w", err)
	}

	g.UserID = shared.UserID(userID)
	g.TargetAmount = shared.Amount(target)
	g.SavedAmount = shared.Amount(saved)

	if proofBytes != nil {
		id, err := shared.ProofIDFromBytes(proofBytes)
		if err != nil {
			return nil, fmt.Errorf("corrupt proof id in goal row: %w", err)
		}
		g.ProofID = &id
	}

	return &g, nil
}

// proofIDBytes converts an optional proof id to its storage form.
func proofIDBytes(id *shared.ProofID) []byte {
	if id == nil {
		return nil
	}
	return id.Bytes()
}

// ══════════════════════════════════════════════════════════════════════════════
// COUNTER READER IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CounterRepository implements achievement.CounterReader for PostgreSQL.
// Counters are written by GoalRepository.MarkAchieved and
// CourseRepository.MarkCompleted; this type only reads them.
type CounterRepository struct {
	conn *Connection
}

// NewCounterRepository creates a new CounterRepository.
func NewCounterRepository(conn *Connection) *CounterRepository {
	return &CounterRepository{conn: conn}
}

// AchievedGoalCount returns the number of achieved goals for the user.
// Users without a counter row have zero achievements.
func (r *CounterRepository) AchievedGoalCount(ctx context.Context, userID shared.UserID) (int, error) {
	query := `SELECT goals_achieved FROM achievement_counters WHERE user_id = $1`

	var count int
	err := r.conn.QueryRow(ctx, query, userID.String()).Scan(&count)
	if err != nil {
		if IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read goal counter: %w", err)
	}

	return count, nil
}

// CompletedCourseCount returns the number of completed courses for the user.
func (r *CounterRepository) CompletedCourseCount(ctx context.Context, userID shared.UserID) (int, error) {
	query := `SELECT courses_completed FROM achievement_counters WHERE user_id = $1`

	var count int
	err := r.conn.QueryRow(ctx, query, userID.String()).Scan(&count)
	if err != nil {
		if IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read course counter: %w", err)
	}

	return count, nil
}

// Counters returns both counters in one round trip.
func (r *CounterRepository) Counters(ctx context.Context, userID shared.UserID) (*achievement.Counters, error) {
	query := `
		SELECT user_id, goals_achieved, courses_completed, updated_at
		FROM achievement_counters
		WHERE user_id = $1
	`

	var (
		c      achievement.Counters
		userid string
	)

	err := r.conn.QueryRow(ctx, query, userID.String()).Scan(
		&userid,
		&c.GoalsAchieved,
		&c.CoursesCompleted,
		&c.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return &achievement.Counters{
				UserID:    userID,
				UpdatedAt: time.Time{},
			}, nil
		}
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}

	c.UserID = shared.UserID(userid)
	return &c, nil
}
