package proof

import (
	"context"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над записями дедупликации доказательств.
// Записи иммутабельны: создаются один раз и никогда не удаляются.
type Repository interface {
	// Save сохраняет запись о проверенном доказательстве.
	// Повторное сохранение той же записи не является ошибкой.
	Save(ctx context.Context, record *Record) error

	// Get возвращает запись по proof_id.
	// Возвращает shared.ErrProofRecordNotFound, если записи нет.
	Get(ctx context.Context, id shared.ProofID) (*Record, error)

	// Exists сообщает, была ли запись с таким proof_id сохранена ранее.
	Exists(ctx context.Context, id shared.ProofID) (bool, error)

	// Count возвращает общее число записей (для мониторинга дедупликации).
	Count(ctx context.Context) (int, error)
}

// MaterialRepository хранит верифицирующий материал (одна запись на движок).
type MaterialRepository interface {
	// Save сохраняет или заменяет материал.
	Save(ctx context.Context, m *Material) error

	// Get возвращает текущий материал.
	// Возвращает shared.ErrNotFound, если материал не задан.
	Get(ctx context.Context) (*Material, error)
}

// DedupCache - необязательный быстрый кеш поверх Repository (Redis).
// Постоянным источником истины остаётся Repository; промах кеша
// означает обращение к нему.
type DedupCache interface {
	// Seen сообщает, встречался ли proof_id (может дать ложный промах).
	Seen(ctx context.Context, id shared.ProofID) (bool, error)

	// Mark отмечает proof_id как встреченный.
	Mark(ctx context.Context, id shared.ProofID) error
}
