package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE LEVEL COMMAND
// Pull-based tier refresh. Anyone can trigger it for any user: the
// classification is a pure function of the counters, so the caller
// cannot influence the result.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeLevelCommand requests a tier recomputation for a user.
type RecomputeLevelCommand struct {
	// UserID is the user to reclassify.
	UserID shared.UserID

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecomputeLevelCommand) Validate() error {
	if !c.UserID.IsValid() {
		return errors.New("recompute_level: valid user_id is required")
	}
	return nil
}

// RecomputeLevelResult contains the recomputation outcome.
type RecomputeLevelResult struct {
	// OldTier is the tier before recomputation.
	OldTier level.Tier

	// NewTier is the tier after recomputation.
	NewTier level.Tier

	// Changed indicates whether the tier moved.
	Changed bool

	// Events contains domain events generated.
	Events []shared.Event
}

// RecomputeLevelHandler handles the RecomputeLevelCommand.
type RecomputeLevelHandler struct {
	classifier     level.Classifier
	counters       achievement.CounterReader
	eventPublisher shared.EventPublisher
}

// NewRecomputeLevelHandler creates a new RecomputeLevelHandler.
func NewRecomputeLevelHandler(
	classifier level.Classifier,
	counters achievement.CounterReader,
	eventPublisher shared.EventPublisher,
) *RecomputeLevelHandler {
	return &RecomputeLevelHandler{
		classifier:     classifier,
		counters:       counters,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the recompute level command.
func (h *RecomputeLevelHandler) Handle(ctx context.Context, cmd RecomputeLevelCommand) (*RecomputeLevelResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("recompute_level: validation failed: %w", err)
	}

	oldTier, err := h.classifier.GetLevelValue(ctx, cmd.UserID)
	if err != nil {
		oldTier = level.TierBronze
	}

	newTier, err := h.classifier.RecomputeLevel(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("recompute_level: %w", err)
	}

	result := &RecomputeLevelResult{
		OldTier: oldTier,
		NewTier: newTier,
		Changed: oldTier != newTier,
		Events:  make([]shared.Event, 0),
	}

	if result.Changed {
		goals, courses := 0, 0
		if c, cerr := h.counters.Counters(ctx, cmd.UserID); cerr == nil {
			goals, courses = c.GoalsAchieved, c.CoursesCompleted
		}

		event := shared.NewLevelChangedEvent(cmd.UserID, oldTier.Int(), newTier.Int(), goals, courses)
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		result.Events = append(result.Events, event)
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}
