// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/proof"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK FLOW SAGA
// Complex business process: proof-backed achievement unlocking
// Flow: Verify Proof → Load Record → Mark Terminal → Recompute Level →
//
//	Publish Events
//
// The terminal flip and its counter bump commit in one repository
// transaction; everything after that point is non-critical and never
// rolls the unlock back. A duplicate proof for an already-achieved
// record is reported as such, not retried.
// ══════════════════════════════════════════════════════════════════════════════

// UnlockKind discriminates what the proof unlocks.
type UnlockKind string

const (
	// UnlockGoal - a savings goal achievement.
	UnlockGoal UnlockKind = "goal"

	// UnlockCourse - a course completion.
	UnlockCourse UnlockKind = "course"
)

// UnlockInput contains data needed to run the unlock flow.
type UnlockInput struct {
	// UserID - the user submitting the proof.
	UserID shared.UserID

	// Kind - what the proof unlocks.
	Kind UnlockKind

	// CourseID - required when Kind is UnlockCourse.
	CourseID shared.CourseID

	// ProofBlob - the opaque proof envelope.
	ProofBlob []byte

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate checks if the input is valid.
func (i UnlockInput) Validate() error {
	if !i.UserID.IsValid() {
		return errors.New("unlock_flow: valid user ID is required")
	}
	if i.Kind != UnlockGoal && i.Kind != UnlockCourse {
		return fmt.Errorf("unlock_flow: unknown unlock kind: %s", i.Kind)
	}
	if i.Kind == UnlockCourse && !i.CourseID.IsValid() {
		return errors.New("unlock_flow: valid course ID is required")
	}
	if len(i.ProofBlob) == 0 {
		return errors.New("unlock_flow: proof blob is required")
	}
	return nil
}

// UnlockResult contains the result of the unlock flow.
type UnlockResult struct {
	// UserID - the user whose record was unlocked.
	UserID shared.UserID

	// ProofID - content identifier of the submitted proof.
	ProofID shared.ProofID

	// Badge - badge level decoded from the proof (courses only).
	Badge achievement.BadgeLevel

	// OldTier - tier before the recomputation.
	OldTier level.Tier

	// NewTier - tier after the recomputation.
	NewTier level.Tier

	// Events contains domain events generated by the flow.
	Events []shared.Event

	// ProcessedAt - when the flow completed.
	ProcessedAt time.Time
}

// TierChanged returns true if the unlock moved the user to a new tier.
func (r *UnlockResult) TierChanged() bool {
	return r.OldTier != r.NewTier
}

// UnlockFlowStep represents a step in the unlock flow.
type UnlockFlowStep string

const (
	StepVerifyProof    UnlockFlowStep = "verify_proof"
	StepLoadRecord     UnlockFlowStep = "load_record"
	StepMarkTerminal   UnlockFlowStep = "mark_terminal"
	StepRecomputeLevel UnlockFlowStep = "recompute_level"
	StepPublishEvents  UnlockFlowStep = "publish_events"
	StepUnlockComplete UnlockFlowStep = "complete"
)

// UnlockFlowState tracks the current state of the unlock flow saga.
type UnlockFlowState struct {
	CurrentStep UnlockFlowStep
	Input       UnlockInput
	ProofID     shared.ProofID
	Blob        *proof.Blob
	Goal        *achievement.Goal
	Completion  *achievement.CourseCompletion
	Badge       achievement.BadgeLevel
	OldTier     level.Tier
	NewTier     level.Tier
	Events      []shared.Event
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       error
	FailedStep  UnlockFlowStep
}

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK FLOW SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UnlockFlowSaga orchestrates proof verification and the monotonic
// achievement flip, then recomputes the user's tier from the counters.
type UnlockFlowSaga struct {
	// Dependencies
	verifier   proof.Verifier
	goalRepo   achievement.GoalRepository
	courseRepo achievement.CourseRepository
	classifier level.Classifier
	eventBus   shared.EventPublisher
}

// NewUnlockFlowSaga creates a new unlock flow saga with all dependencies.
func NewUnlockFlowSaga(
	verifier proof.Verifier,
	goalRepo achievement.GoalRepository,
	courseRepo achievement.CourseRepository,
	classifier level.Classifier,
	eventBus shared.EventPublisher,
) *UnlockFlowSaga {
	return &UnlockFlowSaga{
		verifier:   verifier,
		goalRepo:   goalRepo,
		courseRepo: courseRepo,
		classifier: classifier,
		eventBus:   eventBus,
	}
}

// Execute runs the complete unlock process.
func (s *UnlockFlowSaga) Execute(ctx context.Context, input UnlockInput) (*UnlockResult, error) {
	state := &UnlockFlowState{
		CurrentStep: StepVerifyProof,
		Input:       input,
		StartedAt:   time.Now().UTC(),
	}

	// Validate input
	if err := input.Validate(); err != nil {
		state.FailedStep = StepVerifyProof
		state.Error = err
		return nil, s.wrapError(state, err)
	}

	// Step 1: Verify the proof (idempotent, content-addressed)
	if err := s.stepVerifyProof(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 2: Load the target record
	state.CurrentStep = StepLoadRecord
	if err := s.stepLoadRecord(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 3: Flip the terminal flag and bump the counter atomically
	state.CurrentStep = StepMarkTerminal
	if err := s.stepMarkTerminal(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 4: Recompute the tier from the fresh counters
	state.CurrentStep = StepRecomputeLevel
	if err := s.stepRecomputeLevel(ctx, state); err != nil {
		// Non-critical: the unlock is durable, the tier catches up on
		// the next recompute. The old tier stands in for the new one.
		state.NewTier = state.OldTier
	}

	// Step 5: Publish domain events
	state.CurrentStep = StepPublishEvents
	s.stepPublishEvents(state)

	// Complete
	state.CurrentStep = StepUnlockComplete
	now := time.Now().UTC()
	state.CompletedAt = &now

	return &UnlockResult{
		UserID:      input.UserID,
		ProofID:     state.ProofID,
		Badge:       state.Badge,
		OldTier:     state.OldTier,
		NewTier:     state.NewTier,
		Events:      state.Events,
		ProcessedAt: now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

// stepVerifyProof validates the blob and derives its content id.
func (s *UnlockFlowSaga) stepVerifyProof(ctx context.Context, state *UnlockFlowState) error {
	id, err := s.verifier.Verify(ctx, state.Input.ProofBlob)
	if err != nil {
		state.FailedStep = StepVerifyProof
		state.Error = fmt.Errorf("proof verification failed: %w", err)
		return state.Error
	}
	state.ProofID = id

	blob, err := proof.ParseBlob(state.Input.ProofBlob)
	if err != nil {
		// Verify already parsed the blob; a failure here means the
		// bytes changed underneath us.
		state.FailedStep = StepVerifyProof
		state.Error = err
		return state.Error
	}
	state.Blob = blob

	if state.Input.Kind == UnlockCourse {
		badge, err := decodeBadge(blob)
		if err != nil {
			state.FailedStep = StepVerifyProof
			state.Error = err
			return state.Error
		}
		state.Badge = badge
	}

	return nil
}

// stepLoadRecord loads the goal or course record to unlock.
func (s *UnlockFlowSaga) stepLoadRecord(ctx context.Context, state *UnlockFlowState) error {
	switch state.Input.Kind {
	case UnlockGoal:
		g, err := s.goalRepo.Get(ctx, state.Input.UserID)
		if err != nil {
			state.FailedStep = StepLoadRecord
			state.Error = fmt.Errorf("failed to load goal: %w", err)
			return state.Error
		}
		if g.Achieved {
			state.FailedStep = StepLoadRecord
			state.Error = shared.ErrAlreadyAchieved
			return state.Error
		}
		state.Goal = g

	case UnlockCourse:
		c, err := s.courseRepo.Get(ctx, state.Input.UserID, state.Input.CourseID)
		if err != nil && !errors.Is(err, shared.ErrCourseNotFound) {
			state.FailedStep = StepLoadRecord
			state.Error = fmt.Errorf("failed to load course record: %w", err)
			return state.Error
		}
		if c == nil {
			c = achievement.NewCourseCompletion(state.Input.UserID, state.Input.CourseID)
		}
		if c.Completed {
			state.FailedStep = StepLoadRecord
			state.Error = shared.ErrAlreadyCompleted
			return state.Error
		}
		state.Completion = c
	}

	// Remember the tier before the flip for the change event.
	tier, err := s.classifier.GetLevelValue(ctx, state.Input.UserID)
	if err != nil {
		tier = level.TierBronze
	}
	state.OldTier = tier

	return nil
}

// stepMarkTerminal performs the irreversible flip plus counter bump.
func (s *UnlockFlowSaga) stepMarkTerminal(ctx context.Context, state *UnlockFlowState) error {
	switch state.Input.Kind {
	case UnlockGoal:
		if err := state.Goal.MarkAchieved(state.ProofID); err != nil {
			state.FailedStep = StepMarkTerminal
			state.Error = err
			return err
		}
		if err := s.goalRepo.MarkAchieved(ctx, state.Goal); err != nil {
			state.FailedStep = StepMarkTerminal
			state.Error = fmt.Errorf("failed to persist goal achievement: %w", err)
			return state.Error
		}
		state.Events = append(state.Events,
			shared.NewAchievementUnlockedEvent(state.Input.UserID, state.ProofID))

	case UnlockCourse:
		if err := state.Completion.MarkCompleted(state.ProofID, state.Badge); err != nil {
			state.FailedStep = StepMarkTerminal
			state.Error = err
			return err
		}
		if err := s.courseRepo.MarkCompleted(ctx, state.Completion); err != nil {
			state.FailedStep = StepMarkTerminal
			state.Error = fmt.Errorf("failed to persist course completion: %w", err)
			return state.Error
		}
		state.Events = append(state.Events,
			shared.NewCourseCompletedEvent(state.Input.UserID, state.Input.CourseID,
				state.ProofID, int(state.Badge)))
	}

	return nil
}

// stepRecomputeLevel refreshes the persisted tier from the counters.
func (s *UnlockFlowSaga) stepRecomputeLevel(ctx context.Context, state *UnlockFlowState) error {
	tier, err := s.classifier.RecomputeLevel(ctx, state.Input.UserID)
	if err != nil {
		state.FailedStep = StepRecomputeLevel
		state.Error = fmt.Errorf("failed to recompute level: %w", err)
		return state.Error
	}
	state.NewTier = tier

	return nil
}

// stepPublishEvents publishes the accumulated domain events.
// Publish failures are swallowed: the unlock is already durable.
func (s *UnlockFlowSaga) stepPublishEvents(state *UnlockFlowState) {
	if state.NewTier != state.OldTier {
		state.Events = append(state.Events, shared.NewLevelChangedEvent(
			state.Input.UserID,
			state.OldTier.Int(),
			state.NewTier.Int(),
			0, 0,
		))
	}

	for _, e := range state.Events {
		_ = s.eventBus.Publish(e)
	}
}

// wrapError annotates a saga failure with the step it failed on.
func (s *UnlockFlowSaga) wrapError(state *UnlockFlowState, err error) error {
	return fmt.Errorf("unlock_flow: step %s: %w", state.FailedStep, err)
}

// decodeBadge extracts the badge level from the proof's public inputs.
// Word 0 is the score, word 1 the passing score. A course proof must
// carry both words; out-of-range words fail with the word's own error.
func decodeBadge(b *proof.Blob) (achievement.BadgeLevel, error) {
	if b.InputCount() < 2 {
		return 0, fmt.Errorf("course proof requires score and passing score inputs: %w",
			shared.ErrInvalidProofFormat)
	}

	score, err := b.InputWord(0)
	if err != nil {
		return 0, err
	}
	passing, err := b.InputWord(1)
	if err != nil {
		return 0, err
	}

	return achievement.DeriveBadgeLevel(score, passing), nil
}
