package query

import (
	"context"
	"errors"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/proof"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROOF STATUS QUERY
// Проверяет, было ли доказательство с данным proof_id успешно проверено.
// Источник истины - реестр в Postgres; кеш используется только на
// мутирующем пути.
// ══════════════════════════════════════════════════════════════════════════════

// IsProofVerifiedQuery содержит параметры запроса статуса доказательства.
type IsProofVerifiedQuery struct {
	// ProofID - контентный идентификатор блоба.
	ProofID shared.ProofID
}

// Validate проверяет корректность параметров запроса.
func (q IsProofVerifiedQuery) Validate() error {
	if q.ProofID.IsZero() {
		return errors.New("proof_id is required")
	}
	return nil
}

// ProofStatusDTO - статус доказательства.
type ProofStatusDTO struct {
	// ProofID - hex-идентификатор доказательства.
	ProofID string `json:"proof_id"`

	// Verified - доказательство прошло проверку.
	Verified bool `json:"verified"`

	// BlobSize - размер блоба на момент проверки, байт.
	BlobSize int `json:"blob_size,omitempty"`

	// VerifiedAt - время первой успешной проверки.
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// IsProofVerifiedResult содержит результат запроса статуса.
type IsProofVerifiedResult struct {
	// Status - статус доказательства.
	Status ProofStatusDTO `json:"status"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// IsProofVerifiedHandler обрабатывает запросы статуса доказательств.
type IsProofVerifiedHandler struct {
	proofRepo proof.Repository
}

// NewIsProofVerifiedHandler создаёт новый обработчик.
func NewIsProofVerifiedHandler(proofRepo proof.Repository) *IsProofVerifiedHandler {
	return &IsProofVerifiedHandler{proofRepo: proofRepo}
}

// Handle выполняет запрос статуса доказательства.
// Неизвестный proof_id - не ошибка: возвращается Verified=false.
func (h *IsProofVerifiedHandler) Handle(ctx context.Context, query IsProofVerifiedQuery) (*IsProofVerifiedResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "IsProofVerified", shared.ErrValidation, err.Error(), err)
	}

	status := ProofStatusDTO{ProofID: query.ProofID.String()}

	record, err := h.proofRepo.Get(ctx, query.ProofID)
	switch {
	case err == nil:
		status.Verified = record.Verified
		status.BlobSize = record.BlobSize
		verifiedAt := record.VerifiedAt
		status.VerifiedAt = &verifiedAt
	case errors.Is(err, shared.ErrNotFound):
		// Verified остаётся false.
	default:
		return nil, shared.WrapError("query", "IsProofVerified", shared.ErrExternalCall,
			"failed to load proof record", err)
	}

	return &IsProofVerifiedResult{
		Status:      status,
		GeneratedAt: timeutil.Now(),
	}, nil
}
