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
// COURSE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements achievement.CourseRepository for PostgreSQL.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

// Get returns the completion record for (user, course).
func (r *CourseRepository) Get(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (*achievement.CourseCompletion, error) {
	query := `
		SELECT user_id, course_id, completed, badge_level, proof_id,
			   completed_at, created_at
		FROM course_completions
		WHERE user_id = $1 AND course_id = $2
	`

	row := r.conn.QueryRow(ctx, query, userID.String(), courseID.String())
	return scanCompletion(row)
}

// ListByUser returns all course records for the user, newest first.
func (r *CourseRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*achievement.CourseCompletion, error) {
	query := `
		SELECT user_id, course_id, completed, badge_level, proof_id,
			   completed_at, created_at
		FROM course_completions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.conn.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list course completions: %w", err)
	}
	defer rows.Close()

	var completions []*achievement.CourseCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		completions = append(completions, c)
	}

	return completions, rows.Err()
}

// MarkCompleted inserts the terminal completion record and bumps the
// user's courses_completed counter in one transaction. A row that is
// already terminal is reported as shared.ErrAlreadyCompleted and left
// untouched.
func (r *CourseRepository) MarkCompleted(ctx context.Context, c *achievement.CourseCompletion) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		upsertQuery := `
			INSERT INTO course_completions (
				user_id, course_id, completed, badge_level, proof_id,
				completed_at, created_at
			) VALUES ($1, $2, TRUE, $3, $4, $5, $6)
			ON CONFLICT (user_id, course_id) DO UPDATE SET
				completed = TRUE,
				badge_level = EXCLUDED.badge_level,
				proof_id = EXCLUDED.proof_id,
				completed_at = EXCLUDED.completed_at
			WHERE course_completions.completed = FALSE
		`

		tag, err := tx.Exec(ctx, upsertQuery,
			c.UserID.String(),
			c.CourseID.String(),
			int(c.BadgeLevel),
			proofIDBytes(c.ProofID),
			c.CompletedAt,
			c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to mark course completed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrAlreadyCompleted
		}

		counterQuery := `
			INSERT INTO achievement_counters (user_id, goals_achieved, courses_completed, updated_at)
			VALUES ($1, 0, 1, $2)
			ON CONFLICT (user_id) DO UPDATE SET
				courses_completed = achievement_counters.courses_completed + 1,
				updated_at = EXCLUDED.updated_at
		`

		if _, err := tx.Exec(ctx, counterQuery, c.UserID.String(), c.CompletedAt); err != nil {
			return fmt.Errorf("failed to bump course counter: %w", err)
		}

		return nil
	})
}

// scanCompletion scans a course completion row.
func scanCompletion(row pgx.Row) (*achievement.CourseCompletion, error) {
	var (
		c           achievement.CourseCompletion
		userID      string
		courseID    string
		badge       int
		proofBytes  []byte
		completedAt *time.Time
	)

	err := row.Scan(
		&userID,
		&courseID,
		&c.Completed,
		&badge,
		&proofBytes,
		&completedAt,
		&c.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to scan course completion: %w", err)
	}

	c.UserID = shared.UserID(userID)
	c.CourseID = shared.CourseID(courseID)
	c.BadgeLevel = achievement.BadgeLevel(badge)

	if completedAt != nil {
		c.CompletedAt = *completedAt
	}

	if proofBytes != nil {
		id, err := shared.ProofIDFromBytes(proofBytes)
		if err != nil {
			return nil, fmt.Errorf("corrupt proof id in completion row: %w", err)
		}
		c.ProofID = &id
	}

	return &c, nil
}
