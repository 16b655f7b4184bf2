package proof

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// buildBlob собирает валидный конверт: заголовок, N входов, тело.
func buildBlob(inputs []uint64, proofLen int) []byte {
	raw := make([]byte, 0, HeaderSize+len(inputs)*PublicInputSize+proofLen)

	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, uint32(len(inputs)))
	raw = append(raw, header...)

	for _, v := range inputs {
		word := make([]byte, PublicInputSize)
		binary.BigEndian.PutUint64(word[PublicInputSize-8:], v)
		raw = append(raw, word...)
	}

	body := make([]byte, proofLen)
	for i := range body {
		body[i] = byte(i % 251)
	}
	return append(raw, body...)
}

func TestParseBlob_Valid(t *testing.T) {
	raw := buildBlob([]uint64{42, 7}, MinProofBytes)

	blob, err := ParseBlob(raw)
	require.NoError(t, err)

	assert.Equal(t, 2, blob.InputCount())
	assert.Len(t, blob.ProofBytes, MinProofBytes)
	assert.Equal(t, raw, blob.Raw)

	w0, err := blob.InputWord(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), w0)

	w1, err := blob.InputWord(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), w1)
}

func TestParseBlob_NoInputs(t *testing.T) {
	raw := buildBlob(nil, MinProofBytes)

	blob, err := ParseBlob(raw)
	require.NoError(t, err)
	assert.Equal(t, 0, blob.InputCount())
}

func TestParseBlob_TooShortHeader(t *testing.T) {
	_, err := ParseBlob([]byte{0, 0, 1})
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestParseBlob_ProofBodyTooShort(t *testing.T) {
	raw := buildBlob([]uint64{1}, MinProofBytes-1)

	_, err := ParseBlob(raw)
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestParseBlob_DeclaredCountExceedsLength(t *testing.T) {
	// Заголовок обещает 1000 входов, тело их не содержит.
	raw := buildBlob(nil, MinProofBytes)
	binary.BigEndian.PutUint32(raw[:HeaderSize], 1000)

	_, err := ParseBlob(raw)
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestInputWord_IndexOutOfRange(t *testing.T) {
	blob, err := ParseBlob(buildBlob([]uint64{5}, MinProofBytes))
	require.NoError(t, err)

	_, err = blob.InputWord(1)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	_, err = blob.InputWord(-1)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestInputWord_OverflowingWord(t *testing.T) {
	raw := buildBlob([]uint64{5}, MinProofBytes)
	// Портим старший байт слова - значение не помещается в uint64.
	raw[HeaderSize] = 0xFF

	blob, err := ParseBlob(raw)
	require.NoError(t, err)

	_, err = blob.InputWord(0)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestContentHash_Deterministic(t *testing.T) {
	raw := buildBlob([]uint64{42}, MinProofBytes)

	id1 := ContentHash(raw)
	id2 := ContentHash(raw)
	assert.Equal(t, id1, id2)
	assert.False(t, id1.IsZero())
}

func TestContentHash_DiffersOnSingleByte(t *testing.T) {
	raw := buildBlob([]uint64{42}, MinProofBytes)
	id1 := ContentHash(raw)

	raw[len(raw)-1] ^= 0x01
	id2 := ContentHash(raw)

	assert.NotEqual(t, id1, id2)
}

func TestNewRecord(t *testing.T) {
	id := ContentHash([]byte("blob"))
	rec := NewRecord(id, 1234)

	assert.Equal(t, id, rec.ProofID)
	assert.True(t, rec.Verified)
	assert.Equal(t, 1234, rec.BlobSize)
	assert.False(t, rec.VerifiedAt.IsZero())
}
