// Package postgres implements PostgreSQL persistence layer for Kopilka.
package postgres

import (
	"context"
	"fmt"

	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/savings"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAVINGS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SavingsRepository implements savings.Repository for PostgreSQL.
type SavingsRepository struct {
	conn *Connection
}

// NewSavingsRepository creates a new SavingsRepository.
func NewSavingsRepository(conn *Connection) *SavingsRepository {
	return &SavingsRepository{conn: conn}
}

// Save creates or replaces the user's savings position.
func (r *SavingsRepository) Save(ctx context.Context, p *savings.Position) error {
	query := `
		INSERT INTO savings_positions (
			user_id, principal, interest_earned, tier, apy_bps,
			last_updated, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			principal = EXCLUDED.principal,
			interest_earned = EXCLUDED.interest_earned,
			tier = EXCLUDED.tier,
			apy_bps = EXCLUDED.apy_bps,
			last_updated = EXCLUDED.last_updated
	`

	_, err := r.conn.Exec(ctx, query,
		p.UserID.String(),
		p.Principal.Int64(),
		p.InterestEarned.Int64(),
		p.Tier.Int(),
		p.APYBps.Int64(),
		p.LastUpdated,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save savings position: %w", err)
	}

	return nil
}

// Get returns the user's savings position.
func (r *SavingsRepository) Get(ctx context.Context, userID shared.UserID) (*savings.Position, error) {
	query := `
		SELECT user_id, principal, interest_earned, tier, apy_bps,
			   last_updated, created_at
		FROM savings_positions
		WHERE user_id = $1
	`

	var (
		p         savings.Position
		userid    string
		principal int64
		interest  int64
		tier      int
		apy       int64
	)

	err := r.conn.QueryRow(ctx, query, userID.String()).Scan(
		&userid,
		&principal,
		&interest,
		&tier,
		&apy,
		&p.LastUpdated,
		&p.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrPositionNotFound
		}
		return nil, fmt.Errorf("failed to get savings position: %w", err)
	}

	p.UserID = shared.UserID(userid)
	p.Principal = shared.Amount(principal)
	p.InterestEarned = shared.Amount(interest)
	p.Tier = level.TierFromInt(tier)
	p.APYBps = shared.BasisPoints(apy)

	return &p, nil
}
