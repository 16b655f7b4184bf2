package level

import (
	"context"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над записями уровней.
type Repository interface {
	// Save создаёт или заменяет запись уровня пользователя.
	Save(ctx context.Context, lvl *UserLevel) error

	// Get возвращает запись уровня.
	// Возвращает shared.ErrLevelNotFound, если записи нет.
	Get(ctx context.Context, userID shared.UserID) (*UserLevel, error)
}

// Classifier - возможность определения уровня, потребляемая
// накопительным леджером.
type Classifier interface {
	// RecomputeLevel пересчитывает уровень из счётчиков достижений,
	// сохраняет запись и возвращает уровень.
	RecomputeLevel(ctx context.Context, userID shared.UserID) (Tier, error)

	// GetLevelValue возвращает последний сохранённый уровень или
	// Bronze, если запись отсутствует. Пересчёт не запускает:
	// пересчёт явный и pull-based.
	GetLevelValue(ctx context.Context, userID shared.UserID) (Tier, error)
}

// Cache - необязательный кеш уровней (Redis), прогреваемый при пересчёте.
type Cache interface {
	// Get возвращает уровень из кеша.
	Get(ctx context.Context, userID shared.UserID) (Tier, error)

	// Set сохраняет уровень в кеш.
	Set(ctx context.Context, userID shared.UserID, tier Tier) error

	// Delete инвалидирует кеш уровня.
	Delete(ctx context.Context, userID shared.UserID) error
}
