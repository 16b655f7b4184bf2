package service

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopilka-hub/kopilka/internal/domain/proof"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ──────────────────────────────────────────────────────────────────────────────
// In-memory fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeProofRepo struct {
	records map[shared.ProofID]*proof.Record
	saves   int
	failAll bool
}

func newFakeProofRepo() *fakeProofRepo {
	return &fakeProofRepo{records: make(map[shared.ProofID]*proof.Record)}
}

func (r *fakeProofRepo) Save(ctx context.Context, record *proof.Record) error {
	if r.failAll {
		return errors.New("storage down")
	}
	r.records[record.ProofID] = record
	r.saves++
	return nil
}

func (r *fakeProofRepo) Get(ctx context.Context, id shared.ProofID) (*proof.Record, error) {
	if rec, ok := r.records[id]; ok {
		return rec, nil
	}
	return nil, shared.ErrProofRecordNotFound
}

func (r *fakeProofRepo) Exists(ctx context.Context, id shared.ProofID) (bool, error) {
	if r.failAll {
		return false, errors.New("storage down")
	}
	_, ok := r.records[id]
	return ok, nil
}

func (r *fakeProofRepo) Count(ctx context.Context) (int, error) {
	return len(r.records), nil
}

type fakeMaterialRepo struct {
	material *proof.Material
	failSave bool
}

func (r *fakeMaterialRepo) Save(ctx context.Context, m *proof.Material) error {
	if r.failSave {
		return errors.New("storage down")
	}
	r.material = m
	return nil
}

func (r *fakeMaterialRepo) Get(ctx context.Context) (*proof.Material, error) {
	if r.material == nil {
		return nil, shared.ErrNotFound
	}
	return r.material, nil
}

type fakeDedupCache struct {
	seen  map[shared.ProofID]bool
	marks int
}

func newFakeDedupCache() *fakeDedupCache {
	return &fakeDedupCache{seen: make(map[shared.ProofID]bool)}
}

func (c *fakeDedupCache) Seen(ctx context.Context, id shared.ProofID) (bool, error) {
	return c.seen[id], nil
}

func (c *fakeDedupCache) Mark(ctx context.Context, id shared.ProofID) error {
	c.seen[id] = true
	c.marks++
	return nil
}

type captureBus struct {
	events []shared.Event
}

func (b *captureBus) Publish(event shared.Event) error {
	b.events = append(b.events, event)
	return nil
}

// validBlob собирает структурно корректный блоб с одним публичным входом.
func validBlob(seed byte) []byte {
	blob := make([]byte, 4+32+128)
	binary.BigEndian.PutUint32(blob[:4], 1)
	blob[4+31] = seed
	for i := 36; i < len(blob); i++ {
		blob[i] = seed ^ byte(i)
	}
	return blob
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestVerifierService_Verify_RegistersNewProof(t *testing.T) {
	ctx := context.Background()
	repo := newFakeProofRepo()
	svc := NewVerifierService(repo, &fakeMaterialRepo{}, nil, nil)

	blob := validBlob(0x01)

	id, err := svc.Verify(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, proof.ContentHash(blob), id)
	assert.Equal(t, 1, repo.saves)

	rec, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.Verified)
	assert.Equal(t, len(blob), rec.BlobSize)
}

func TestVerifierService_Verify_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := newFakeProofRepo()
	svc := NewVerifierService(repo, &fakeMaterialRepo{}, nil, nil)

	blob := validBlob(0x02)

	first, err := svc.Verify(ctx, blob)
	require.NoError(t, err)

	second, err := svc.Verify(ctx, blob)
	require.NoError(t, err)

	// Тот же идентификатор, без повторной записи.
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.saves)
}

func TestVerifierService_Verify_MalformedBlob(t *testing.T) {
	ctx := context.Background()
	repo := newFakeProofRepo()
	svc := NewVerifierService(repo, &fakeMaterialRepo{}, nil, nil)

	_, err := svc.Verify(ctx, []byte{1, 2, 3})
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
	assert.Equal(t, 0, repo.saves)
}

func TestVerifierService_Verify_WarmsDedupCache(t *testing.T) {
	ctx := context.Background()
	repo := newFakeProofRepo()
	cache := newFakeDedupCache()
	svc := NewVerifierService(repo, &fakeMaterialRepo{}, cache, nil)

	blob := validBlob(0x03)

	id, err := svc.Verify(ctx, blob)
	require.NoError(t, err)
	assert.True(t, cache.seen[id])

	// Повтор отвечает из кеша, не трогая реестр.
	repo.failAll = true
	again, err := svc.Verify(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestVerifierService_Verify_PublishesOutcome(t *testing.T) {
	ctx := context.Background()
	bus := &captureBus{}
	svc := NewVerifierService(newFakeProofRepo(), &fakeMaterialRepo{}, nil, bus)

	blob := validBlob(0x05)

	id, err := svc.Verify(ctx, blob)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, blob)
	require.NoError(t, err)

	// Обе подачи публикуют событие; повтор помечен дубликатом.
	require.Len(t, bus.events, 2)
	first, ok := bus.events[0].(shared.ProofVerifiedEvent)
	require.True(t, ok)
	assert.Equal(t, id.String(), first.ProofID)
	assert.Equal(t, len(blob), first.BlobSize)
	assert.False(t, first.Duplicate)

	second := bus.events[1].(shared.ProofVerifiedEvent)
	assert.True(t, second.Duplicate)
}

func TestVerifierService_IsVerified(t *testing.T) {
	ctx := context.Background()
	repo := newFakeProofRepo()
	svc := NewVerifierService(repo, &fakeMaterialRepo{}, nil, nil)

	blob := validBlob(0x04)
	id, err := svc.Verify(ctx, blob)
	require.NoError(t, err)

	seen, err := svc.IsVerified(ctx, id)
	require.NoError(t, err)
	assert.True(t, seen)

	unknown, err := svc.IsVerified(ctx, proof.ContentHash([]byte("never submitted")))
	require.NoError(t, err)
	assert.False(t, unknown)
}

func TestVerifierService_IsVerified_RegistryFailure(t *testing.T) {
	ctx := context.Background()
	repo := newFakeProofRepo()
	repo.failAll = true
	svc := NewVerifierService(repo, &fakeMaterialRepo{}, nil, nil)

	_, err := svc.IsVerified(ctx, proof.ContentHash([]byte("anything")))
	assert.ErrorIs(t, err, shared.ErrExternalCall)
}

func TestVerifierService_SetMaterial(t *testing.T) {
	ctx := context.Background()
	materials := &fakeMaterialRepo{}
	svc := NewVerifierService(newFakeProofRepo(), materials, nil, nil)

	data := []byte("verifying material bytes")

	hash, err := svc.SetMaterial(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, proof.ContentHash(data), hash)

	stored, err := svc.GetMaterial(ctx)
	require.NoError(t, err)
	assert.Equal(t, data, stored.Data)
	assert.Equal(t, hash, stored.ContentHash)
}

func TestVerifierService_SetMaterial_Empty(t *testing.T) {
	ctx := context.Background()
	svc := NewVerifierService(newFakeProofRepo(), &fakeMaterialRepo{}, nil, nil)

	_, err := svc.SetMaterial(ctx, nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.SetMaterial(ctx, []byte{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
