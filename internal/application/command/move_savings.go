package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/savings"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/keylock"
	"github.com/kopilka-hub/kopilka/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAVINGS COMMANDS
// Deposits and withdrawals on the interest-bearing position. Every
// mutation settles accrued interest under the old rate first, picks up
// the current tier, applies the movement and persists the position in
// its own transaction.
// ══════════════════════════════════════════════════════════════════════════════

// DepositSavingsCommand adds funds to the savings position.
type DepositSavingsCommand struct {
	// UserID is the owner of the position.
	UserID shared.UserID

	// Amount is the amount to deposit (must be positive).
	Amount shared.Amount

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c DepositSavingsCommand) Validate() error {
	if !c.UserID.IsValid() {
		return errors.New("deposit_savings: valid user_id is required")
	}
	if !c.Amount.IsPositive() {
		return shared.ErrInvalidAmount
	}
	return nil
}

// WithdrawSavingsCommand removes funds from the savings position.
type WithdrawSavingsCommand struct {
	// UserID is the owner of the position.
	UserID shared.UserID

	// Amount is the amount to withdraw (must be positive).
	Amount shared.Amount

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c WithdrawSavingsCommand) Validate() error {
	if !c.UserID.IsValid() {
		return errors.New("withdraw_savings: valid user_id is required")
	}
	if !c.Amount.IsPositive() {
		return shared.ErrInvalidAmount
	}
	return nil
}

// SavingsResult contains the position state after a movement.
type SavingsResult struct {
	// Principal is the principal after the operation.
	Principal shared.Amount

	// InterestEarned is the settled interest after the operation.
	InterestEarned shared.Amount

	// Balance is principal plus interest.
	Balance shared.Amount

	// AccruedNow is the interest settled by this operation.
	AccruedNow shared.Amount

	// Tier is the tier the position now earns under.
	Tier level.Tier

	// Events contains domain events generated.
	Events []shared.Event
}

// SavingsHandler handles savings deposit and withdrawal commands.
type SavingsHandler struct {
	savingsRepo    savings.Repository
	classifier     level.Classifier
	eventPublisher shared.EventPublisher
	locks          *keylock.KeyLock
}

// NewSavingsHandler creates a new SavingsHandler.
func NewSavingsHandler(
	savingsRepo savings.Repository,
	classifier level.Classifier,
	eventPublisher shared.EventPublisher,
	locks *keylock.KeyLock,
) *SavingsHandler {
	return &SavingsHandler{
		savingsRepo:    savingsRepo,
		classifier:     classifier,
		eventPublisher: eventPublisher,
		locks:          locks,
	}
}

// HandleDeposit executes the savings deposit command.
// The first deposit creates the position under the user's current tier.
func (h *SavingsHandler) HandleDeposit(ctx context.Context, cmd DepositSavingsCommand) (*SavingsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("deposit_savings: validation failed: %w", err)
	}

	if !h.locks.TryAcquire(cmd.UserID.String()) {
		return nil, shared.ErrOperationInFlight
	}
	defer h.locks.Release(cmd.UserID.String())

	now := timeutil.Now()

	pos, err := h.savingsRepo.Get(ctx, cmd.UserID)
	if errors.Is(err, shared.ErrPositionNotFound) {
		tier, terr := h.classifier.GetLevelValue(ctx, cmd.UserID)
		if terr != nil {
			tier = level.TierBronze
		}
		pos = savings.NewPosition(cmd.UserID, tier, now)
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("deposit_savings: failed to load position: %w", err)
	}

	accrued, err := savings.Refresh(ctx, pos, h.classifier, now)
	if err != nil {
		return nil, fmt.Errorf("deposit_savings: %w", err)
	}

	if err := pos.Deposit(cmd.Amount); err != nil {
		return nil, fmt.Errorf("deposit_savings: %w", err)
	}

	if err := h.savingsRepo.Save(ctx, pos); err != nil {
		return nil, fmt.Errorf("deposit_savings: failed to save position: %w", err)
	}

	event := shared.NewSavingsDepositedEvent(cmd.UserID, cmd.Amount,
		pos.Principal, pos.InterestEarned, pos.Tier.Int())
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	events := h.publishMovement(event, cmd.UserID, accrued, pos)

	return &SavingsResult{
		Principal:      pos.Principal,
		InterestEarned: pos.InterestEarned,
		Balance:        pos.Balance(),
		AccruedNow:     accrued,
		Tier:           pos.Tier,
		Events:         events,
	}, nil
}

// HandleWithdraw executes the savings withdrawal command.
// Withdrawals debit principal first, then settled interest. A missing
// position has nothing to withdraw.
func (h *SavingsHandler) HandleWithdraw(ctx context.Context, cmd WithdrawSavingsCommand) (*SavingsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("withdraw_savings: validation failed: %w", err)
	}

	if !h.locks.TryAcquire(cmd.UserID.String()) {
		return nil, shared.ErrOperationInFlight
	}
	defer h.locks.Release(cmd.UserID.String())

	now := timeutil.Now()

	pos, err := h.savingsRepo.Get(ctx, cmd.UserID)
	if errors.Is(err, shared.ErrPositionNotFound) {
		return nil, shared.ErrPositionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("withdraw_savings: failed to load position: %w", err)
	}

	accrued, err := savings.Refresh(ctx, pos, h.classifier, now)
	if err != nil {
		return nil, fmt.Errorf("withdraw_savings: %w", err)
	}

	if err := pos.Withdraw(cmd.Amount); err != nil {
		// The failed withdrawal never persists; the settled interest is
		// recomputed identically on the next touch.
		return nil, fmt.Errorf("withdraw_savings: %w", err)
	}

	if err := h.savingsRepo.Save(ctx, pos); err != nil {
		return nil, fmt.Errorf("withdraw_savings: failed to save position: %w", err)
	}

	event := shared.NewSavingsWithdrawnEvent(cmd.UserID, cmd.Amount,
		pos.Principal, pos.InterestEarned, pos.Tier.Int())
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	events := h.publishMovement(event, cmd.UserID, accrued, pos)

	return &SavingsResult{
		Principal:      pos.Principal,
		InterestEarned: pos.InterestEarned,
		Balance:        pos.Balance(),
		AccruedNow:     accrued,
		Tier:           pos.Tier,
		Events:         events,
	}, nil
}

// publishMovement publishes the movement event plus, when this mutation
// settled interest, the accrual event. Publish failures are swallowed:
// the position is already durable.
func (h *SavingsHandler) publishMovement(
	movement shared.Event,
	userID shared.UserID,
	accrued shared.Amount,
	pos *savings.Position,
) []shared.Event {
	events := []shared.Event{movement}
	if accrued.IsPositive() {
		events = append(events, shared.NewInterestAccruedEvent(
			userID, accrued, pos.InterestEarned, pos.Tier.Int()))
	}
	for _, e := range events {
		_ = h.eventPublisher.Publish(e)
	}
	return events
}
