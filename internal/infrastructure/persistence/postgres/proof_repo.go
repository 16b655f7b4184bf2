// Package postgres implements PostgreSQL persistence layer for Kopilka.
package postgres

import (
	"context"
	"fmt"

	"github.com/kopilka-hub/kopilka/internal/domain/proof"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROOF REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProofRepository implements proof.Repository for PostgreSQL.
// The proof_records table is append-only.
type ProofRepository struct {
	conn *Connection
}

// NewProofRepository creates a new ProofRepository.
func NewProofRepository(conn *Connection) *ProofRepository {
	return &ProofRepository{conn: conn}
}

// Save stores a verified proof record. Records are content-addressed,
// so re-saving the same proof id is a no-op rather than an error.
func (r *ProofRepository) Save(ctx context.Context, rec *proof.Record) error {
	query := `
		INSERT INTO proof_records (proof_id, verified, blob_size, verified_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (proof_id) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, query,
		rec.ProofID.Bytes(),
		rec.Verified,
		rec.BlobSize,
		rec.VerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save proof record: %w", err)
	}

	return nil
}

// Get returns a proof record by proof id.
func (r *ProofRepository) Get(ctx context.Context, id shared.ProofID) (*proof.Record, error) {
	query := `
		SELECT proof_id, verified, blob_size, verified_at
		FROM proof_records
		WHERE proof_id = $1
	`

	var (
		rec     proof.Record
		idBytes []byte
	)

	err := r.conn.QueryRow(ctx, query, id.Bytes()).Scan(
		&idBytes,
		&rec.Verified,
		&rec.BlobSize,
		&rec.VerifiedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProofRecordNotFound
		}
		return nil, fmt.Errorf("failed to get proof record: %w", err)
	}

	rec.ProofID, err = shared.ProofIDFromBytes(idBytes)
	if err != nil {
		return nil, fmt.Errorf("corrupt proof id in record row: %w", err)
	}

	return &rec, nil
}

// Exists reports whether a record with the given proof id was saved before.
func (r *ProofRepository) Exists(ctx context.Context, id shared.ProofID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM proof_records WHERE proof_id = $1)`

	var exists bool
	if err := r.conn.QueryRow(ctx, query, id.Bytes()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check proof record: %w", err)
	}

	return exists, nil
}

// Count returns the total number of proof records.
func (r *ProofRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM proof_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count proof records: %w", err)
	}

	return count, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// VERIFYING MATERIAL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MaterialRepository implements proof.MaterialRepository for PostgreSQL.
// The table holds a single current row; replacing the material is an
// upsert into that row.
type MaterialRepository struct {
	conn *Connection
}

// NewMaterialRepository creates a new MaterialRepository.
func NewMaterialRepository(conn *Connection) *MaterialRepository {
	return &MaterialRepository{conn: conn}
}

// Save stores or replaces the verifying material.
func (r *MaterialRepository) Save(ctx context.Context, m *proof.Material) error {
	query := `
		INSERT INTO verifying_material (singleton, content_hash, data, updated_at)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (singleton) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query, m.ContentHash.Bytes(), m.Data, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save verifying material: %w", err)
	}

	return nil
}

// Get returns the current verifying material.
func (r *MaterialRepository) Get(ctx context.Context) (*proof.Material, error) {
	query := `
		SELECT content_hash, data, updated_at
		FROM verifying_material
		WHERE singleton = TRUE
	`

	var (
		m         proof.Material
		hashBytes []byte
	)

	err := r.conn.QueryRow(ctx, query).Scan(&hashBytes, &m.Data, &m.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrConfigurationMissing
		}
		return nil, fmt.Errorf("failed to get verifying material: %w", err)
	}

	m.ContentHash, err = shared.ProofIDFromBytes(hashBytes)
	if err != nil {
		return nil, fmt.Errorf("corrupt content hash in material row: %w", err)
	}

	return &m, nil
}
