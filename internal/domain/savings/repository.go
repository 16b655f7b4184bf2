package savings

import (
	"context"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над накопительными позициями.
// Позиции создаются при первом депозите и никогда не удаляются.
type Repository interface {
	// Save создаёт или заменяет позицию пользователя.
	Save(ctx context.Context, p *Position) error

	// Get возвращает позицию пользователя.
	// Возвращает shared.ErrPositionNotFound, если позиции нет.
	Get(ctx context.Context, userID shared.UserID) (*Position, error)
}
