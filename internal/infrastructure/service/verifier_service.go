package service

import (
	"context"

	"github.com/kopilka-hub/kopilka/internal/domain/proof"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/timeutil"
)

// VerifierService implements proof.Verifier and proof.MaterialStore.
//
// Verification here is structural: the blob envelope is parsed and
// validated, the proof id is derived from content, and the result is
// registered for deduplication. The cryptographic pairing check is a
// placeholder pending integration with a real proving system; the
// capability boundary lets that land without touching callers.
type VerifierService struct {
	records   proof.Repository
	materials proof.MaterialRepository
	dedup     proof.DedupCache
	events    shared.EventPublisher
}

// NewVerifierService creates a new VerifierService.
// The dedup cache and event publisher are optional; pass nil to always
// hit the registry and to verify silently.
func NewVerifierService(
	records proof.Repository,
	materials proof.MaterialRepository,
	dedup proof.DedupCache,
	events shared.EventPublisher,
) *VerifierService {
	return &VerifierService{
		records:   records,
		materials: materials,
		dedup:     dedup,
		events:    events,
	}
}

// Verify validates the blob structure, derives the content-addressed
// proof id and registers it. Submitting the same blob again returns the
// same id without re-validation: verification is idempotent.
func (s *VerifierService) Verify(ctx context.Context, blob []byte) (shared.ProofID, error) {
	if _, err := proof.ParseBlob(blob); err != nil {
		return shared.ProofID{}, err
	}

	id := proof.ContentHash(blob)

	seen, err := s.alreadySeen(ctx, id)
	if err != nil {
		return shared.ProofID{}, err
	}
	if seen {
		s.announce(id, len(blob), true)
		return id, nil
	}

	// Placeholder acceptance: a structurally valid blob passes. The
	// record is written before the cache so a crash between the two
	// cannot lose the durable fact.
	if err := s.records.Save(ctx, proof.NewRecord(id, len(blob))); err != nil {
		return shared.ProofID{}, shared.WrapError("proof", "Verify", shared.ErrExternalCall,
			"failed to register proof", err)
	}

	s.markSeen(ctx, id)
	s.announce(id, len(blob), false)

	return id, nil
}

// announce publishes the verification outcome. Best-effort: the
// registry record is the durable fact, not the event.
func (s *VerifierService) announce(id shared.ProofID, blobSize int, duplicate bool) {
	if s.events != nil {
		_ = s.events.Publish(shared.NewProofVerifiedEvent(id, blobSize, duplicate))
	}
}

// IsVerified reports whether the proof id has been verified before.
func (s *VerifierService) IsVerified(ctx context.Context, id shared.ProofID) (bool, error) {
	return s.alreadySeen(ctx, id)
}

// SetMaterial stores the verifying material and returns its content hash.
func (s *VerifierService) SetMaterial(ctx context.Context, data []byte) (shared.ProofID, error) {
	if len(data) == 0 {
		return shared.ProofID{}, shared.ErrInvalidInput
	}

	m := &proof.Material{
		ContentHash: proof.ContentHash(data),
		Data:        data,
		UpdatedAt:   timeutil.Now(),
	}

	if err := s.materials.Save(ctx, m); err != nil {
		return shared.ProofID{}, shared.WrapError("proof", "SetMaterial", shared.ErrExternalCall,
			"failed to store verifying material", err)
	}

	return m.ContentHash, nil
}

// GetMaterial returns the current verifying material.
func (s *VerifierService) GetMaterial(ctx context.Context) (*proof.Material, error) {
	return s.materials.Get(ctx)
}

// alreadySeen consults the cache first, then the registry. A cache miss
// is never trusted on its own: the registry is the source of truth.
func (s *VerifierService) alreadySeen(ctx context.Context, id shared.ProofID) (bool, error) {
	if s.dedup != nil {
		if seen, err := s.dedup.Seen(ctx, id); err == nil && seen {
			return true, nil
		}
	}

	exists, err := s.records.Exists(ctx, id)
	if err != nil {
		return false, shared.WrapError("proof", "alreadySeen", shared.ErrExternalCall,
			"failed to check proof registry", err)
	}
	if exists {
		s.markSeen(ctx, id)
	}

	return exists, nil
}

// markSeen warms the dedup cache. Cache failures are ignored: the
// registry already holds the record.
func (s *VerifierService) markSeen(ctx context.Context, id shared.ProofID) {
	if s.dedup != nil {
		_ = s.dedup.Mark(ctx, id)
	}
}
