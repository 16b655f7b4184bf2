// Package proof содержит доменную модель проверки доказательств (ZK proofs).
// Блоб доказательства - непрозрачный байтовый конверт; здесь валидируется
// только его структура, криптографическая математика остаётся за границей
// возможности (capability boundary).
package proof

import (
	"encoding/binary"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// КОНВЕРТ ДОКАЗАТЕЛЬСТВА
// Формат: [4 байта big-endian количество N][N × 32 байта публичных входов][байты proof]
// ══════════════════════════════════════════════════════════════════════════════

const (
	// HeaderSize - размер заголовка с количеством публичных входов.
	HeaderSize = 4

	// PublicInputSize - размер одного публичного входа (32-байтовое слово).
	PublicInputSize = 32

	// MinProofBytes - минимальный размер самих байтов доказательства.
	MinProofBytes = 100
)

// Blob представляет разобранный конверт доказательства.
type Blob struct {
	// Raw - исходные байты целиком (по ним считается proof_id).
	Raw []byte

	// PublicInputs - публичные входы, N слов по 32 байта.
	PublicInputs [][]byte

	// ProofBytes - оставшиеся байты самого доказательства.
	ProofBytes []byte
}

// ParseBlob разбирает блоб доказательства и валидирует его структуру.
// Возвращает shared.ErrInvalidProofFormat, если блоб короче 4 байт или
// короче 4 + 32·N + 100 байт.
func ParseBlob(raw []byte) (*Blob, error) {
	if len(raw) < HeaderSize {
		return nil, shared.ErrInvalidProofFormat
	}

	count := binary.BigEndian.Uint32(raw[:HeaderSize])

	minSize := HeaderSize + int(count)*PublicInputSize + MinProofBytes
	if len(raw) < minSize {
		return nil, shared.ErrInvalidProofFormat
	}

	inputs := make([][]byte, count)
	offset := HeaderSize
	for i := range inputs {
		inputs[i] = raw[offset : offset+PublicInputSize]
		offset += PublicInputSize
	}

	return &Blob{
		Raw:          raw,
		PublicInputs: inputs,
		ProofBytes:   raw[offset:],
	}, nil
}

// InputCount возвращает количество публичных входов.
func (b *Blob) InputCount() int {
	return len(b.PublicInputs)
}

// InputWord возвращает публичный вход с индексом i как uint64.
// Слово - 32-байтовое big-endian число; значимыми считаются последние
// 8 байт, старшие байты должны быть нулевыми.
func (b *Blob) InputWord(i int) (uint64, error) {
	if i < 0 || i >= len(b.PublicInputs) {
		return 0, shared.NewDomainError("proof", "InputWord", shared.ErrValueOutOfRange,
			"public input index out of range")
	}

	word := b.PublicInputs[i]
	for _, c := range word[:PublicInputSize-8] {
		if c != 0 {
			return 0, shared.NewDomainError("proof", "InputWord", shared.ErrValueOutOfRange,
				"public input does not fit into uint64")
		}
	}

	return binary.BigEndian.Uint64(word[PublicInputSize-8:]), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ЗАПИСЬ О ПРОВЕРЕННОМ ДОКАЗАТЕЛЬСТВЕ
// ══════════════════════════════════════════════════════════════════════════════

// Record - запись дедупликации: proof_id -> verified.
// Создаётся один раз на уникальное содержимое блоба и никогда не удаляется.
type Record struct {
	// ProofID - контентный идентификатор блоба.
	ProofID shared.ProofID

	// Verified - всегда true для сохранённых записей.
	Verified bool

	// BlobSize - размер блоба на момент проверки (для диагностики).
	BlobSize int

	// VerifiedAt - время первой успешной проверки.
	VerifiedAt time.Time
}

// NewRecord создаёт запись о проверенном доказательстве.
func NewRecord(id shared.ProofID, blobSize int) *Record {
	return &Record{
		ProofID:    id,
		Verified:   true,
		BlobSize:   blobSize,
		VerifiedAt: time.Now().UTC(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ВЕРИФИЦИРУЮЩИЙ МАТЕРИАЛ
// ══════════════════════════════════════════════════════════════════════════════

// Material - верифицирующий материал (verification key), хранимый админом.
// Текущая реализация не выполняет криптографическую проверку по нему;
// материал хранится и адресуется по контентному хешу.
type Material struct {
	// ContentHash - Keccak-256 хеш материала.
	ContentHash shared.ProofID

	// Data - сырые байты материала.
	Data []byte

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}
