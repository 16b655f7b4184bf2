// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Proof events
	EventProofVerified    EventType = "proof.verified"
	EventMaterialUpdated  EventType = "proof.material_updated"

	// Achievement events
	EventGoalSet             EventType = "achievement.goal_set"
	EventEscrowDeposited     EventType = "achievement.escrow_deposited"
	EventEscrowWithdrawn     EventType = "achievement.escrow_withdrawn"
	EventAchievementUnlocked EventType = "achievement.unlocked"
	EventCourseCompleted     EventType = "achievement.course_completed"

	// Level events
	EventLevelChanged    EventType = "level.changed"
	EventLevelRecomputed EventType = "level.recomputed"

	// Savings events
	EventSavingsDeposited EventType = "savings.deposited"
	EventSavingsWithdrawn EventType = "savings.withdrawn"
	EventInterestAccrued  EventType = "savings.interest_accrued"

	// System events
	EventAdminBootstrapped EventType = "system.admin_bootstrapped"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	EventID       string    `json:"event_id"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		EventID:     uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Proof Events
// ═══════════════════════════════════════════════════════════════════════════

// ProofVerifiedEvent is emitted when a proof blob passes verification.
type ProofVerifiedEvent struct {
	BaseEvent
	ProofID   string `json:"proof_id"`
	BlobSize  int    `json:"blob_size"`
	Duplicate bool   `json:"duplicate"`
}

// Payload implements Event interface.
func (e ProofVerifiedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"proof_id":  e.ProofID,
		"blob_size": e.BlobSize,
		"duplicate": e.Duplicate,
	}
}

// NewProofVerifiedEvent creates a new ProofVerifiedEvent.
func NewProofVerifiedEvent(proofID ProofID, blobSize int, duplicate bool) ProofVerifiedEvent {
	return ProofVerifiedEvent{
		BaseEvent: NewBaseEvent(EventProofVerified, proofID.String()),
		ProofID:   proofID.String(),
		BlobSize:  blobSize,
		Duplicate: duplicate,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// GoalSetEvent is emitted when a user creates or replaces their savings goal.
type GoalSetEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	TargetAmount int64  `json:"target_amount"`
	HasDeadline  bool   `json:"has_deadline"`
}

// Payload implements Event interface.
func (e GoalSetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"target_amount": e.TargetAmount,
		"has_deadline":  e.HasDeadline,
	}
}

// NewGoalSetEvent creates a new GoalSetEvent.
func NewGoalSetEvent(userID UserID, target Amount, hasDeadline bool) GoalSetEvent {
	return GoalSetEvent{
		BaseEvent:    NewBaseEvent(EventGoalSet, userID.String()),
		UserID:       userID.String(),
		TargetAmount: target.Int64(),
		HasDeadline:  hasDeadline,
	}
}

// EscrowMovedEvent is emitted on escrow deposits and withdrawals.
type EscrowMovedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	Amount      int64  `json:"amount"`
	SavedAmount int64  `json:"saved_amount"`
}

// Payload implements Event interface.
func (e EscrowMovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"amount":       e.Amount,
		"saved_amount": e.SavedAmount,
	}
}

// NewEscrowDepositedEvent creates an escrow deposit event.
func NewEscrowDepositedEvent(userID UserID, amount, saved Amount) EscrowMovedEvent {
	return EscrowMovedEvent{
		BaseEvent:   NewBaseEvent(EventEscrowDeposited, userID.String()),
		UserID:      userID.String(),
		Amount:      amount.Int64(),
		SavedAmount: saved.Int64(),
	}
}

// NewEscrowWithdrawnEvent creates an escrow withdrawal event.
func NewEscrowWithdrawnEvent(userID UserID, amount, saved Amount) EscrowMovedEvent {
	return EscrowMovedEvent{
		BaseEvent:   NewBaseEvent(EventEscrowWithdrawn, userID.String()),
		UserID:      userID.String(),
		Amount:      amount.Int64(),
		SavedAmount: saved.Int64(),
	}
}

// AchievementUnlockedEvent is emitted when a savings goal flips to achieved.
// This event triggers the lazy tier recomputation.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	ProofID string `json:"proof_id"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"proof_id": e.ProofID,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID UserID, proofID ProofID) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent: NewBaseEvent(EventAchievementUnlocked, userID.String()),
		UserID:    userID.String(),
		ProofID:   proofID.String(),
	}
}

// CourseCompletedEvent is emitted when a course completion flips to achieved.
type CourseCompletedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	CourseID   string `json:"course_id"`
	ProofID    string `json:"proof_id"`
	BadgeLevel int    `json:"badge_level"`
}

// Payload implements Event interface.
func (e CourseCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"course_id":   e.CourseID,
		"proof_id":    e.ProofID,
		"badge_level": e.BadgeLevel,
	}
}

// NewCourseCompletedEvent creates a new CourseCompletedEvent.
func NewCourseCompletedEvent(userID UserID, courseID CourseID, proofID ProofID, badge int) CourseCompletedEvent {
	return CourseCompletedEvent{
		BaseEvent:  NewBaseEvent(EventCourseCompleted, userID.String()),
		UserID:     userID.String(),
		CourseID:   courseID.String(),
		ProofID:    proofID.String(),
		BadgeLevel: badge,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Events
// ═══════════════════════════════════════════════════════════════════════════

// LevelChangedEvent is emitted when a recomputation moves a user to a new tier.
type LevelChangedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldTier  int    `json:"old_tier"`
	NewTier  int    `json:"new_tier"`
	Goals    int    `json:"goals_achieved"`
	Courses  int    `json:"courses_completed"`
}

// Payload implements Event interface.
func (e LevelChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":           e.UserID,
		"old_tier":          e.OldTier,
		"new_tier":          e.NewTier,
		"goals_achieved":    e.Goals,
		"courses_completed": e.Courses,
	}
}

// NewLevelChangedEvent creates a new LevelChangedEvent.
func NewLevelChangedEvent(userID UserID, oldTier, newTier, goals, courses int) LevelChangedEvent {
	return LevelChangedEvent{
		BaseEvent: NewBaseEvent(EventLevelChanged, userID.String()),
		UserID:    userID.String(),
		OldTier:   oldTier,
		NewTier:   newTier,
		Goals:     goals,
		Courses:   courses,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Savings Events
// ═══════════════════════════════════════════════════════════════════════════

// SavingsMovedEvent is emitted on savings deposits and withdrawals.
type SavingsMovedEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	Amount         int64  `json:"amount"`
	Principal      int64  `json:"principal"`
	InterestEarned int64  `json:"interest_earned"`
	Tier           int    `json:"tier"`
}

// Payload implements Event interface.
func (e SavingsMovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"amount":          e.Amount,
		"principal":       e.Principal,
		"interest_earned": e.InterestEarned,
		"tier":            e.Tier,
	}
}

// NewSavingsDepositedEvent creates a savings deposit event.
func NewSavingsDepositedEvent(userID UserID, amount, principal, interest Amount, tier int) SavingsMovedEvent {
	return SavingsMovedEvent{
		BaseEvent:      NewBaseEvent(EventSavingsDeposited, userID.String()),
		UserID:         userID.String(),
		Amount:         amount.Int64(),
		Principal:      principal.Int64(),
		InterestEarned: interest.Int64(),
		Tier:           tier,
	}
}

// NewSavingsWithdrawnEvent creates a savings withdrawal event.
func NewSavingsWithdrawnEvent(userID UserID, amount, principal, interest Amount, tier int) SavingsMovedEvent {
	return SavingsMovedEvent{
		BaseEvent:      NewBaseEvent(EventSavingsWithdrawn, userID.String()),
		UserID:         userID.String(),
		Amount:         amount.Int64(),
		Principal:      principal.Int64(),
		InterestEarned: interest.Int64(),
		Tier:           tier,
	}
}

// InterestAccruedEvent is emitted when a savings mutation settles
// interest that accrued since the last touch.
type InterestAccruedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	Accrued       int64  `json:"accrued"`
	TotalInterest int64  `json:"total_interest"`
	Tier          int    `json:"tier"`
}

// Payload implements Event interface.
func (e InterestAccruedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"accrued":        e.Accrued,
		"total_interest": e.TotalInterest,
		"tier":           e.Tier,
	}
}

// NewInterestAccruedEvent creates a new InterestAccruedEvent.
func NewInterestAccruedEvent(userID UserID, accrued, total Amount, tier int) InterestAccruedEvent {
	return InterestAccruedEvent{
		BaseEvent:     NewBaseEvent(EventInterestAccrued, userID.String()),
		UserID:        userID.String(),
		Accrued:       accrued.Int64(),
		TotalInterest: total.Int64(),
		Tier:          tier,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
