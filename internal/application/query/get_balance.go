// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/savings"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET BALANCE QUERY
// Возвращает текущий баланс накопительной позиции как проекцию:
// процент доначисляется в памяти на момент запроса, но позиция
// НЕ сохраняется. Персистит начисление только мутирующая операция.
// ══════════════════════════════════════════════════════════════════════════════

// GetBalanceQuery содержит параметры запроса баланса.
type GetBalanceQuery struct {
	// UserID - владелец позиции.
	UserID shared.UserID
}

// Validate проверяет корректность параметров запроса.
func (q GetBalanceQuery) Validate() error {
	if !q.UserID.IsValid() {
		return errors.New("valid user_id is required")
	}
	return nil
}

// BalanceDTO - проекция накопительной позиции.
type BalanceDTO struct {
	// UserID - владелец позиции.
	UserID string `json:"user_id"`

	// Principal - основная сумма вклада.
	Principal int64 `json:"principal"`

	// InterestEarned - накопленный процент, включая начисление на
	// момент запроса.
	InterestEarned int64 `json:"interest_earned"`

	// Balance - полный баланс (principal + interest).
	Balance int64 `json:"balance"`

	// Tier - уровень, определяющий текущую ставку.
	Tier string `json:"tier"`

	// APYBps - текущая ставка в базисных пунктах.
	APYBps int64 `json:"apy_bps"`

	// AccruedNow - процент, доначисленный этим запросом (не персистится).
	AccruedNow int64 `json:"accrued_now"`

	// LastUpdated - момент последнего персистентного начисления.
	LastUpdated *time.Time `json:"last_updated,omitempty"`

	// HasPosition - false, если позиция ещё не открыта.
	HasPosition bool `json:"has_position"`
}

// GetBalanceResult содержит результат запроса баланса.
type GetBalanceResult struct {
	// Balance - проекция позиции.
	Balance BalanceDTO `json:"balance"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetBalanceHandler обрабатывает запросы баланса.
type GetBalanceHandler struct {
	savingsRepo savings.Repository
	classifier  level.Classifier
}

// NewGetBalanceHandler создаёт новый обработчик.
func NewGetBalanceHandler(savingsRepo savings.Repository, classifier level.Classifier) *GetBalanceHandler {
	return &GetBalanceHandler{
		savingsRepo: savingsRepo,
		classifier:  classifier,
	}
}

// Handle выполняет запрос баланса.
//
// Отсутствие позиции - не ошибка: возвращается нулевой баланс под
// уровнем Bronze, как если бы позиция только что была открыта.
func (h *GetBalanceHandler) Handle(ctx context.Context, query GetBalanceQuery) (*GetBalanceResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetBalance", shared.ErrValidation, err.Error(), err)
	}

	now := timeutil.Now()

	pos, err := h.savingsRepo.Get(ctx, query.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return &GetBalanceResult{
				Balance: BalanceDTO{
					UserID: query.UserID.String(),
					Tier:   level.TierBronze.String(),
					APYBps: savings.BronzeAPY.Int64(),
				},
				GeneratedAt: now,
			}, nil
		}
		return nil, shared.WrapError("query", "GetBalance", shared.ErrExternalCall,
			"failed to load position", err)
	}

	// Доначисляем в памяти; ошибка классификатора не валит запрос -
	// процент к этому моменту уже начислен под записанной ставкой.
	accrued, _ := savings.Refresh(ctx, pos, h.classifier, now)

	lastUpdated := pos.LastUpdated

	return &GetBalanceResult{
		Balance: BalanceDTO{
			UserID:         pos.UserID.String(),
			Principal:      pos.Principal.Int64(),
			InterestEarned: pos.InterestEarned.Int64(),
			Balance:        pos.Balance().Int64(),
			Tier:           pos.Tier.String(),
			APYBps:         pos.APYBps.Int64(),
			AccruedNow:     accrued.Int64(),
			LastUpdated:    &lastUpdated,
			HasPosition:    true,
		},
		GeneratedAt: now,
	}, nil
}
