package query

import (
	"context"
	"errors"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEVEL QUERY
// Получает текущий уровень пользователя со счётчиками достижений.
// Уровень - производная величина: пользователь без записи читается как
// Bronze, это не ошибка.
// ══════════════════════════════════════════════════════════════════════════════

// GetLevelQuery содержит параметры запроса уровня.
type GetLevelQuery struct {
	// UserID - пользователь, чей уровень запрашивается.
	UserID shared.UserID
}

// Validate проверяет корректность параметров запроса.
func (q GetLevelQuery) Validate() error {
	if !q.UserID.IsValid() {
		return errors.New("valid user_id is required")
	}
	return nil
}

// UserLevelDTO - проекция уровня пользователя.
type UserLevelDTO struct {
	// UserID - владелец записи.
	UserID string `json:"user_id"`

	// Tier - текущий уровень (bronze/silver/gold/platinum).
	Tier string `json:"tier"`

	// TierValue - числовое значение уровня (1-4).
	TierValue int `json:"tier_value"`

	// GoalsAchieved - подтверждённые накопительные цели.
	GoalsAchieved int `json:"goals_achieved"`

	// CoursesCompleted - завершённые курсы.
	CoursesCompleted int `json:"courses_completed"`
}

// GetLevelResult содержит результат запроса уровня.
type GetLevelResult struct {
	// Level - проекция уровня.
	Level UserLevelDTO `json:"level"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetLevelHandler обрабатывает запросы уровня.
type GetLevelHandler struct {
	classifier level.Classifier
	counters   achievement.CounterReader
}

// NewGetLevelHandler создаёт новый обработчик.
func NewGetLevelHandler(classifier level.Classifier, counters achievement.CounterReader) *GetLevelHandler {
	return &GetLevelHandler{
		classifier: classifier,
		counters:   counters,
	}
}

// Handle выполняет запрос уровня.
func (h *GetLevelHandler) Handle(ctx context.Context, query GetLevelQuery) (*GetLevelResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLevel", shared.ErrValidation, err.Error(), err)
	}

	tier, err := h.classifier.GetLevelValue(ctx, query.UserID)
	if err != nil {
		return nil, shared.WrapError("query", "GetLevel", shared.ErrExternalCall,
			"tier lookup failed", err)
	}

	// Счётчики - дополнение к уровню; их отсутствие не валит запрос.
	goals, courses := 0, 0
	if c, cerr := h.counters.Counters(ctx, query.UserID); cerr == nil {
		goals, courses = c.GoalsAchieved, c.CoursesCompleted
	}

	return &GetLevelResult{
		Level: UserLevelDTO{
			UserID:           query.UserID.String(),
			Tier:             tier.String(),
			TierValue:        tier.Int(),
			GoalsAchieved:    goals,
			CoursesCompleted: courses,
		},
		GeneratedAt: timeutil.Now(),
	}, nil
}
