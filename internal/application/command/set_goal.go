// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/keylock"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET GOAL COMMAND
// Creates or replaces the user's savings goal. A replacement keeps the
// escrow balance and resets the achieved flag: the new target is a new
// goal, even if funds from the old one carry over.
// ══════════════════════════════════════════════════════════════════════════════

// SetGoalCommand contains the data to set a savings goal.
type SetGoalCommand struct {
	// UserID is the owner of the goal.
	UserID shared.UserID

	// TargetAmount is the amount to save (must be positive).
	TargetAmount shared.Amount

	// Deadline is an optional target date.
	Deadline *time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SetGoalCommand) Validate() error {
	if !c.UserID.IsValid() {
		return errors.New("set_goal: valid user_id is required")
	}
	if !c.TargetAmount.IsPositive() {
		return shared.ErrInvalidTargetAmount
	}
	return nil
}

// SetGoalResult contains the result of setting a goal.
type SetGoalResult struct {
	// Goal is the stored goal after the operation.
	Goal *achievement.Goal

	// Replaced indicates whether an existing goal was replaced.
	Replaced bool

	// Events contains domain events generated.
	Events []shared.Event
}

// SetGoalHandler handles the SetGoalCommand.
type SetGoalHandler struct {
	goalRepo       achievement.GoalRepository
	eventPublisher shared.EventPublisher
	locks          *keylock.KeyLock
}

// NewSetGoalHandler creates a new SetGoalHandler.
func NewSetGoalHandler(
	goalRepo achievement.GoalRepository,
	eventPublisher shared.EventPublisher,
	locks *keylock.KeyLock,
) *SetGoalHandler {
	return &SetGoalHandler{
		goalRepo:       goalRepo,
		eventPublisher: eventPublisher,
		locks:          locks,
	}
}

// Handle executes the set goal command.
func (h *SetGoalHandler) Handle(ctx context.Context, cmd SetGoalCommand) (*SetGoalResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("set_goal: validation failed: %w", err)
	}

	if !h.locks.TryAcquire(cmd.UserID.String()) {
		return nil, shared.ErrOperationInFlight
	}
	defer h.locks.Release(cmd.UserID.String())

	result := &SetGoalResult{Events: make([]shared.Event, 0)}

	goal, err := h.goalRepo.Get(ctx, cmd.UserID)
	switch {
	case err == nil:
		// Replace: escrow survives, achieved resets.
		if err := goal.Replace(cmd.TargetAmount, cmd.Deadline); err != nil {
			return nil, fmt.Errorf("set_goal: %w", err)
		}
		result.Replaced = true

	case errors.Is(err, shared.ErrGoalNotFound):
		goal, err = achievement.NewGoal(cmd.UserID, cmd.TargetAmount, cmd.Deadline)
		if err != nil {
			return nil, fmt.Errorf("set_goal: %w", err)
		}

	default:
		return nil, fmt.Errorf("set_goal: failed to load goal: %w", err)
	}

	if err := h.goalRepo.Save(ctx, goal); err != nil {
		return nil, fmt.Errorf("set_goal: failed to save goal: %w", err)
	}

	result.Goal = goal

	event := shared.NewGoalSetEvent(cmd.UserID, cmd.TargetAmount, cmd.Deadline != nil)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, event)
	_ = h.eventPublisher.Publish(event)

	return result, nil
}
