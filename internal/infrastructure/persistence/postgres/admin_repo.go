// Package postgres implements PostgreSQL persistence layer for Kopilka.
package postgres

import (
	"context"
	"fmt"

	"github.com/kopilka-hub/kopilka/internal/domain/admin"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN MARKER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AdminRepository implements admin.Repository for PostgreSQL.
// Markers are write-once: the primary key on component turns a second
// Create into a unique violation, which is how concurrent bootstrap
// races resolve to exactly one winner.
type AdminRepository struct {
	conn *Connection
}

// NewAdminRepository creates a new AdminRepository.
func NewAdminRepository(conn *Connection) *AdminRepository {
	return &AdminRepository{conn: conn}
}

// Create stores the marker for a component.
func (r *AdminRepository) Create(ctx context.Context, m *admin.Marker) error {
	query := `
		INSERT INTO admin_markers (component, admin_id, bootstrapped, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.conn.Exec(ctx, query,
		string(m.Component),
		m.AdminID.String(),
		m.Bootstrapped,
		m.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAdminAlreadySet
		}
		return fmt.Errorf("failed to create admin marker: %w", err)
	}

	return nil
}

// Get returns the marker for a component.
func (r *AdminRepository) Get(ctx context.Context, component admin.Component) (*admin.Marker, error) {
	query := `
		SELECT component, admin_id, bootstrapped, created_at
		FROM admin_markers
		WHERE component = $1
	`

	var (
		m       admin.Marker
		comp    string
		adminID string
	)

	err := r.conn.QueryRow(ctx, query, string(component)).Scan(
		&comp,
		&adminID,
		&m.Bootstrapped,
		&m.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get admin marker: %w", err)
	}

	m.Component = admin.Component(comp)
	m.AdminID = shared.UserID(adminID)

	return &m, nil
}
