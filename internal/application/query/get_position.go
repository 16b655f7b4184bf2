package query

import (
	"context"
	"errors"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/savings"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET POSITION QUERY
// Возвращает накопительную позицию ровно как она записана в хранилище:
// без доначисления процента и без обращения к классификатору. Для
// баланса "на сейчас" есть GetBalance; этот запрос - для сверки
// персистентного состояния.
// ══════════════════════════════════════════════════════════════════════════════

// GetPositionQuery содержит параметры запроса позиции.
type GetPositionQuery struct {
	// UserID - владелец позиции.
	UserID shared.UserID
}

// Validate проверяет корректность параметров запроса.
func (q GetPositionQuery) Validate() error {
	if !q.UserID.IsValid() {
		return errors.New("valid user_id is required")
	}
	return nil
}

// PositionDTO - персистентное состояние позиции без пересчётов.
type PositionDTO struct {
	// UserID - владелец позиции.
	UserID string `json:"user_id"`

	// Principal - основная сумма вклада.
	Principal int64 `json:"principal"`

	// InterestEarned - процент, начисленный последней мутацией.
	InterestEarned int64 `json:"interest_earned"`

	// Tier - уровень, под который записана ставка.
	Tier string `json:"tier"`

	// APYBps - записанная ставка в базисных пунктах.
	APYBps int64 `json:"apy_bps"`

	// LastUpdated - момент последнего персистентного начисления.
	LastUpdated time.Time `json:"last_updated"`

	// CreatedAt - время открытия позиции.
	CreatedAt time.Time `json:"created_at"`
}

// GetPositionResult содержит результат запроса позиции.
type GetPositionResult struct {
	// Position - состояние позиции из хранилища.
	Position PositionDTO `json:"position"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetPositionHandler обрабатывает запросы персистентной позиции.
type GetPositionHandler struct {
	savingsRepo savings.Repository
}

// NewGetPositionHandler создаёт новый обработчик.
func NewGetPositionHandler(savingsRepo savings.Repository) *GetPositionHandler {
	return &GetPositionHandler{savingsRepo: savingsRepo}
}

// Handle выполняет запрос позиции.
//
// Отсутствие позиции - ошибка ErrPositionNotFound: в отличие от
// GetBalance здесь нечего проецировать.
func (h *GetPositionHandler) Handle(ctx context.Context, query GetPositionQuery) (*GetPositionResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetPosition", shared.ErrValidation, err.Error(), err)
	}

	pos, err := h.savingsRepo.Get(ctx, query.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrPositionNotFound
		}
		return nil, shared.WrapError("query", "GetPosition", shared.ErrExternalCall,
			"failed to load position", err)
	}

	return &GetPositionResult{
		Position: PositionDTO{
			UserID:         pos.UserID.String(),
			Principal:      pos.Principal.Int64(),
			InterestEarned: pos.InterestEarned.Int64(),
			Tier:           pos.Tier.String(),
			APYBps:         pos.APYBps.Int64(),
			LastUpdated:    pos.LastUpdated,
			CreatedAt:      pos.CreatedAt,
		},
		GeneratedAt: timeutil.Now(),
	}, nil
}
