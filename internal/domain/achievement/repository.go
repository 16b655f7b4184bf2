package achievement

import (
	"context"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// GoalRepository определяет операции над накопительными целями.
type GoalRepository interface {
	// Save создаёт или заменяет цель пользователя.
	Save(ctx context.Context, goal *Goal) error

	// Get возвращает цель пользователя.
	// Возвращает shared.ErrGoalNotFound, если цели нет.
	Get(ctx context.Context, userID shared.UserID) (*Goal, error)

	// Update обновляет существующую цель.
	// Возвращает shared.ErrGoalNotFound, если цели нет.
	Update(ctx context.Context, goal *Goal) error

	// MarkAchieved атомарно: взводит терминальный флаг цели, сохраняет
	// proof_id и инкрементирует счётчик достигнутых целей пользователя.
	// Всё в одной транзакции; при ошибке ни одна запись не меняется.
	MarkAchieved(ctx context.Context, goal *Goal) error
}

// CourseRepository определяет операции над завершениями курсов.
type CourseRepository interface {
	// Get возвращает запись о курсе.
	// Возвращает shared.ErrCourseNotFound, если записи нет.
	Get(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (*CourseCompletion, error)

	// ListByUser возвращает все записи пользователя о курсах.
	ListByUser(ctx context.Context, userID shared.UserID) ([]*CourseCompletion, error)

	// MarkCompleted атомарно: создаёт (или обновляет) запись в
	// терминальном состоянии и инкрементирует счётчик завершённых
	// курсов пользователя. Всё в одной транзакции.
	MarkCompleted(ctx context.Context, completion *CourseCompletion) error
}

// CounterReader - возможность агрегации счётчиков, потребляемая
// классификатором уровней. Счётчики инкрементные, не полные сканы.
type CounterReader interface {
	// AchievedGoalCount возвращает число достигнутых целей пользователя.
	AchievedGoalCount(ctx context.Context, userID shared.UserID) (int, error)

	// CompletedCourseCount возвращает число завершённых курсов пользователя.
	CompletedCourseCount(ctx context.Context, userID shared.UserID) (int, error)

	// Counters возвращает оба счётчика одной выборкой.
	Counters(ctx context.Context, userID shared.UserID) (*Counters, error)
}
