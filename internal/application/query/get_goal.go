package query

import (
	"context"
	"errors"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SAVINGS GOAL QUERY
// Возвращает накопительную цель пользователя с прогрессом и статусом
// просрочки. Ключевой запрос для экрана "моя цель".
// ══════════════════════════════════════════════════════════════════════════════

// GetSavingsGoalQuery содержит параметры запроса цели.
type GetSavingsGoalQuery struct {
	// UserID - владелец цели.
	UserID shared.UserID
}

// Validate проверяет корректность параметров запроса.
func (q GetSavingsGoalQuery) Validate() error {
	if !q.UserID.IsValid() {
		return errors.New("valid user_id is required")
	}
	return nil
}

// SavingsGoalDTO - проекция накопительной цели.
type SavingsGoalDTO struct {
	// UserID - владелец цели.
	UserID string `json:"user_id"`

	// TargetAmount - целевая сумма накопления.
	TargetAmount int64 `json:"target_amount"`

	// SavedAmount - эскроу-баланс внутри цели.
	SavedAmount int64 `json:"saved_amount"`

	// Progress - прогресс накопления в процентах (0-100+).
	Progress float64 `json:"progress"`

	// Deadline - срок достижения цели, если задан.
	Deadline *time.Time `json:"deadline,omitempty"`

	// IsOverdue - срок истёк, а цель не достигнута.
	IsOverdue bool `json:"is_overdue"`

	// Achieved - цель подтверждена доказательством.
	Achieved bool `json:"achieved"`

	// ProofID - hex-идентификатор подтвердившего доказательства.
	ProofID string `json:"proof_id,omitempty"`

	// CreatedAt - время создания цели.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// GetSavingsGoalResult содержит результат запроса цели.
type GetSavingsGoalResult struct {
	// Goal - проекция цели.
	Goal SavingsGoalDTO `json:"goal"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetSavingsGoalHandler обрабатывает запросы цели.
type GetSavingsGoalHandler struct {
	goalRepo achievement.GoalRepository
}

// NewGetSavingsGoalHandler создаёт новый обработчик.
func NewGetSavingsGoalHandler(goalRepo achievement.GoalRepository) *GetSavingsGoalHandler {
	return &GetSavingsGoalHandler{goalRepo: goalRepo}
}

// Handle выполняет запрос цели.
// Возвращает shared.ErrGoalNotFound, если цель не установлена.
func (h *GetSavingsGoalHandler) Handle(ctx context.Context, query GetSavingsGoalQuery) (*GetSavingsGoalResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetSavingsGoal", shared.ErrValidation, err.Error(), err)
	}

	goal, err := h.goalRepo.Get(ctx, query.UserID)
	if err != nil {
		return nil, err
	}

	now := timeutil.Now()

	dto := SavingsGoalDTO{
		UserID:       goal.UserID.String(),
		TargetAmount: goal.TargetAmount.Int64(),
		SavedAmount:  goal.SavedAmount.Int64(),
		Progress:     goal.Progress(),
		Deadline:     goal.Deadline,
		IsOverdue:    goal.IsOverdue(now),
		Achieved:     goal.Achieved,
		CreatedAt:    goal.CreatedAt,
		UpdatedAt:    goal.UpdatedAt,
	}
	if goal.ProofID != nil {
		dto.ProofID = goal.ProofID.String()
	}

	return &GetSavingsGoalResult{
		Goal:        dto,
		GeneratedAt: now,
	}, nil
}
