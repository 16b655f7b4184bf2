package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/kopilka-hub/kopilka/internal/application/saga"
	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/keylock"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT PROOF COMMANDS
// Proof-backed unlocking of achievements. Both commands delegate to the
// unlock flow saga; the handler only guards reentrancy per user.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitGoalProofCommand submits a proof for the user's savings goal.
type SubmitGoalProofCommand struct {
	// UserID is the owner of the goal.
	UserID shared.UserID

	// ProofBlob is the opaque proof envelope.
	ProofBlob []byte

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SubmitGoalProofCommand) Validate() error {
	if !c.UserID.IsValid() {
		return errors.New("submit_goal_proof: valid user_id is required")
	}
	if len(c.ProofBlob) == 0 {
		return errors.New("submit_goal_proof: proof blob is required")
	}
	return nil
}

// CompleteCourseCommand submits a proof for a course completion.
type CompleteCourseCommand struct {
	// UserID is the owner of the completion.
	UserID shared.UserID

	// CourseID identifies the course.
	CourseID shared.CourseID

	// ProofBlob is the opaque proof envelope.
	ProofBlob []byte

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteCourseCommand) Validate() error {
	if !c.UserID.IsValid() {
		return errors.New("complete_course: valid user_id is required")
	}
	if !c.CourseID.IsValid() {
		return errors.New("complete_course: valid course_id is required")
	}
	if len(c.ProofBlob) == 0 {
		return errors.New("complete_course: proof blob is required")
	}
	return nil
}

// UnlockProofResult contains the outcome of a proof submission.
type UnlockProofResult struct {
	// ProofID is the content identifier of the accepted proof.
	ProofID shared.ProofID

	// Badge is the decoded badge level (course completions only).
	Badge achievement.BadgeLevel

	// OldTier and NewTier bracket the tier recomputation.
	OldTier level.Tier
	NewTier level.Tier

	// Events contains domain events generated.
	Events []shared.Event
}

// SubmitProofHandler handles proof submission commands.
type SubmitProofHandler struct {
	unlockFlow *saga.UnlockFlowSaga
	locks      *keylock.KeyLock
}

// NewSubmitProofHandler creates a new SubmitProofHandler.
func NewSubmitProofHandler(unlockFlow *saga.UnlockFlowSaga, locks *keylock.KeyLock) *SubmitProofHandler {
	return &SubmitProofHandler{
		unlockFlow: unlockFlow,
		locks:      locks,
	}
}

// HandleGoalProof executes the goal proof submission.
func (h *SubmitProofHandler) HandleGoalProof(ctx context.Context, cmd SubmitGoalProofCommand) (*UnlockProofResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("submit_goal_proof: validation failed: %w", err)
	}

	if !h.locks.TryAcquire(cmd.UserID.String()) {
		return nil, shared.ErrOperationInFlight
	}
	defer h.locks.Release(cmd.UserID.String())

	res, err := h.unlockFlow.Execute(ctx, saga.UnlockInput{
		UserID:        cmd.UserID,
		Kind:          saga.UnlockGoal,
		ProofBlob:     cmd.ProofBlob,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		return nil, err
	}

	return &UnlockProofResult{
		ProofID: res.ProofID,
		OldTier: res.OldTier,
		NewTier: res.NewTier,
		Events:  res.Events,
	}, nil
}

// HandleCourseProof executes the course completion proof submission.
func (h *SubmitProofHandler) HandleCourseProof(ctx context.Context, cmd CompleteCourseCommand) (*UnlockProofResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_course: validation failed: %w", err)
	}

	if !h.locks.TryAcquire(cmd.UserID.String()) {
		return nil, shared.ErrOperationInFlight
	}
	defer h.locks.Release(cmd.UserID.String())

	res, err := h.unlockFlow.Execute(ctx, saga.UnlockInput{
		UserID:        cmd.UserID,
		Kind:          saga.UnlockCourse,
		CourseID:      cmd.CourseID,
		ProofBlob:     cmd.ProofBlob,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		return nil, err
	}

	return &UnlockProofResult{
		ProofID: res.ProofID,
		Badge:   res.Badge,
		OldTier: res.OldTier,
		NewTier: res.NewTier,
		Events:  res.Events,
	}, nil
}
