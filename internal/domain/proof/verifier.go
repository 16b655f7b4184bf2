package proof

import (
	"context"

	"golang.org/x/crypto/sha3"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ГРАНИЦА ВОЗМОЖНОСТИ ВЕРИФИКАЦИИ
// AchievementStore вызывает Verifier синхронно; результат детерминирован:
// одинаковые блобы всегда дают одинаковый proof_id.
// ══════════════════════════════════════════════════════════════════════════════

// Verifier - возможность верификации доказательств, потребляемая
// хранилищем достижений.
type Verifier interface {
	// Verify валидирует структуру блоба, вычисляет proof_id и
	// регистрирует его в кеше дедупликации. Повторный вызов с тем же
	// блобом идемпотентен: возвращается тот же proof_id без повторной
	// валидации.
	Verify(ctx context.Context, blob []byte) (shared.ProofID, error)

	// IsVerified сообщает, был ли proof_id ранее проверен.
	IsVerified(ctx context.Context, id shared.ProofID) (bool, error)
}

// MaterialStore - админская сторона границы: хранение верифицирующего
// материала.
type MaterialStore interface {
	// SetMaterial сохраняет материал и возвращает его контентный хеш.
	SetMaterial(ctx context.Context, data []byte) (shared.ProofID, error)

	// GetMaterial возвращает текущий материал.
	// Возвращает shared.ErrNotFound, если материал не задан.
	GetMaterial(ctx context.Context) (*Material, error)
}

// ContentHash вычисляет Keccak-256 хеш произвольных байтов.
// Это единственная хеш-функция движка: ею адресуются и блобы
// доказательств, и верифицирующий материал.
func ContentHash(data []byte) shared.ProofID {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)

	var id shared.ProofID
	copy(id[:], h.Sum(nil))
	return id
}
