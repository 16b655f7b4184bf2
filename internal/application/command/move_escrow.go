package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/keylock"
)

// ══════════════════════════════════════════════════════════════════════════════
// ESCROW COMMANDS
// Move funds in and out of the goal's escrow balance. Deposits into an
// achieved goal are rejected; withdrawals are always allowed while
// funds remain, achieved or not.
// ══════════════════════════════════════════════════════════════════════════════

// DepositEscrowCommand adds funds to the goal escrow.
type DepositEscrowCommand struct {
	// UserID is the owner of the goal.
	UserID shared.UserID

	// Amount is the amount to deposit (must be positive).
	Amount shared.Amount

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c DepositEscrowCommand) Validate() error {
	if !c.UserID.IsValid() {
		return errors.New("deposit_escrow: valid user_id is required")
	}
	if !c.Amount.IsPositive() {
		return shared.ErrInvalidEscrowAmount
	}
	return nil
}

// WithdrawEscrowCommand removes funds from the goal escrow.
type WithdrawEscrowCommand struct {
	// UserID is the owner of the goal.
	UserID shared.UserID

	// Amount is the amount to withdraw (must be positive).
	Amount shared.Amount

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c WithdrawEscrowCommand) Validate() error {
	if !c.UserID.IsValid() {
		return errors.New("withdraw_escrow: valid user_id is required")
	}
	if !c.Amount.IsPositive() {
		return shared.ErrInvalidEscrowAmount
	}
	return nil
}

// EscrowResult contains the outcome of an escrow movement.
type EscrowResult struct {
	// SavedAmount is the escrow balance after the operation.
	SavedAmount shared.Amount

	// Events contains domain events generated.
	Events []shared.Event
}

// EscrowHandler handles escrow deposit and withdrawal commands.
type EscrowHandler struct {
	goalRepo       achievement.GoalRepository
	eventPublisher shared.EventPublisher
	locks          *keylock.KeyLock
}

// NewEscrowHandler creates a new EscrowHandler.
func NewEscrowHandler(
	goalRepo achievement.GoalRepository,
	eventPublisher shared.EventPublisher,
	locks *keylock.KeyLock,
) *EscrowHandler {
	return &EscrowHandler{
		goalRepo:       goalRepo,
		eventPublisher: eventPublisher,
		locks:          locks,
	}
}

// HandleDeposit executes the deposit escrow command.
func (h *EscrowHandler) HandleDeposit(ctx context.Context, cmd DepositEscrowCommand) (*EscrowResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("deposit_escrow: validation failed: %w", err)
	}

	if !h.locks.TryAcquire(cmd.UserID.String()) {
		return nil, shared.ErrOperationInFlight
	}
	defer h.locks.Release(cmd.UserID.String())

	goal, err := h.goalRepo.Get(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("deposit_escrow: failed to load goal: %w", err)
	}

	saved, err := goal.DepositEscrow(cmd.Amount)
	if err != nil {
		return nil, fmt.Errorf("deposit_escrow: %w", err)
	}

	if err := h.goalRepo.Update(ctx, goal); err != nil {
		return nil, fmt.Errorf("deposit_escrow: failed to save goal: %w", err)
	}

	event := shared.NewEscrowDepositedEvent(cmd.UserID, cmd.Amount, saved)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &EscrowResult{
		SavedAmount: saved,
		Events:      []shared.Event{event},
	}, nil
}

// HandleWithdraw executes the withdraw escrow command.
func (h *EscrowHandler) HandleWithdraw(ctx context.Context, cmd WithdrawEscrowCommand) (*EscrowResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("withdraw_escrow: validation failed: %w", err)
	}

	if !h.locks.TryAcquire(cmd.UserID.String()) {
		return nil, shared.ErrOperationInFlight
	}
	defer h.locks.Release(cmd.UserID.String())

	goal, err := h.goalRepo.Get(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("withdraw_escrow: failed to load goal: %w", err)
	}

	saved, err := goal.WithdrawEscrow(cmd.Amount)
	if err != nil {
		return nil, fmt.Errorf("withdraw_escrow: %w", err)
	}

	if err := h.goalRepo.Update(ctx, goal); err != nil {
		return nil, fmt.Errorf("withdraw_escrow: failed to save goal: %w", err)
	}

	event := shared.NewEscrowWithdrawnEvent(cmd.UserID, cmd.Amount, saved)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &EscrowResult{
		SavedAmount: saved,
		Events:      []shared.Event{event},
	}, nil
}
