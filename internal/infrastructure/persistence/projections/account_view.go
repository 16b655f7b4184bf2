// Package projections implements read models for CQRS pattern.
// Projections are denormalized views optimized for fast reads.
// They are rebuilt on demand and invalidated when domain events occur.
package projections

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/savings"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT VIEW - Denormalized Read Model for the Account Overview
// ══════════════════════════════════════════════════════════════════════════════

// AccountView aggregates goal, level, counters and savings data into a
// single card per user, so the account overview needs no cross-domain
// queries on the hot path. Cards are rebuilt lazily and dropped whenever
// an unlock or a balance movement invalidates them.
type AccountView struct {
	mu sync.RWMutex

	// cards holds all account cards indexed by user ID.
	cards map[shared.UserID]*AccountCard

	// lastUpdated is the timestamp of the last update.
	lastUpdated time.Time

	// version is incremented on each update for cache invalidation.
	version int64
}

// AccountCard is the complete denormalized account state of one user.
type AccountCard struct {
	// Core identity
	UserID string `json:"user_id"`

	// ═══════════════════════════════════════════════════════════════════════════
	// LEVEL
	// ═══════════════════════════════════════════════════════════════════════════

	Tier             string `json:"tier"`
	TierValue        int    `json:"tier_value"`
	GoalsAchieved    int    `json:"goals_achieved"`
	CoursesCompleted int    `json:"courses_completed"`

	// ═══════════════════════════════════════════════════════════════════════════
	// SAVINGS GOAL
	// ═══════════════════════════════════════════════════════════════════════════

	HasGoal       bool       `json:"has_goal"`
	TargetAmount  int64      `json:"target_amount,omitempty"`
	SavedAmount   int64      `json:"saved_amount,omitempty"`
	GoalProgress  float64    `json:"goal_progress,omitempty"`
	GoalDeadline  *time.Time `json:"goal_deadline,omitempty"`
	GoalAchieved  bool       `json:"goal_achieved,omitempty"`
	GoalIsOverdue bool       `json:"goal_is_overdue,omitempty"`

	// ═══════════════════════════════════════════════════════════════════════════
	// SAVINGS POSITION
	// ═══════════════════════════════════════════════════════════════════════════

	HasPosition    bool  `json:"has_position"`
	Principal      int64 `json:"principal,omitempty"`
	InterestEarned int64 `json:"interest_earned,omitempty"`
	Balance        int64 `json:"balance,omitempty"`
	APYBps         int64 `json:"apy_bps,omitempty"`

	// ═══════════════════════════════════════════════════════════════════════════
	// METADATA
	// ═══════════════════════════════════════════════════════════════════════════

	BuiltAt time.Time `json:"built_at"`
	Version int64     `json:"version"`
}

// NewAccountView creates a new empty account view.
func NewAccountView() *AccountView {
	return &AccountView{
		cards:       make(map[shared.UserID]*AccountCard),
		lastUpdated: time.Now().UTC(),
		version:     1,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BUILD / REBUILD OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// BuildCardParams contains the data needed to build an account card.
// Goal and Position are optional: a user may have neither yet.
type BuildCardParams struct {
	UserID   shared.UserID
	Tier     level.Tier
	Counters *achievement.Counters
	Goal     *achievement.Goal
	Position *savings.Position
	Now      time.Time
}

// BuildCard constructs a complete AccountCard from domain entities.
func (av *AccountView) BuildCard(params BuildCardParams) (*AccountCard, error) {
	if !params.UserID.IsValid() {
		return nil, fmt.Errorf("projections: valid user id is required to build card")
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	card := &AccountCard{
		UserID:    params.UserID.String(),
		Tier:      params.Tier.String(),
		TierValue: params.Tier.Int(),
		BuiltAt:   now,
		Version:   1,
	}

	if params.Counters != nil {
		card.GoalsAchieved = params.Counters.GoalsAchieved
		card.CoursesCompleted = params.Counters.CoursesCompleted
	}

	if params.Goal != nil {
		g := params.Goal
		card.HasGoal = true
		card.TargetAmount = g.TargetAmount.Int64()
		card.SavedAmount = g.SavedAmount.Int64()
		card.GoalProgress = g.Progress()
		card.GoalDeadline = g.Deadline
		card.GoalAchieved = g.Achieved
		card.GoalIsOverdue = g.IsOverdue(now)
	}

	if params.Position != nil {
		p := params.Position
		card.HasPosition = true
		card.Principal = p.Principal.Int64()
		card.InterestEarned = p.InterestEarned.Int64()
		card.Balance = p.Balance().Int64()
		card.APYBps = p.APYBps.Int64()
	}

	return card, nil
}

// Upsert stores a card in the view, replacing any previous card of the user.
func (av *AccountView) Upsert(card *AccountCard) {
	if card == nil {
		return
	}

	av.mu.Lock()
	defer av.mu.Unlock()

	av.version++
	card.Version = av.version
	av.cards[shared.UserID(card.UserID)] = card
	av.lastUpdated = time.Now().UTC()
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetByUser returns the cached card of a user, or nil if not built yet.
func (av *AccountView) GetByUser(userID shared.UserID) *AccountCard {
	av.mu.RLock()
	defer av.mu.RUnlock()

	card, ok := av.cards[userID]
	if !ok {
		return nil
	}

	// Return a copy so callers cannot mutate the view.
	clone := *card
	return &clone
}

// Count returns the number of cached cards.
func (av *AccountView) Count() int {
	av.mu.RLock()
	defer av.mu.RUnlock()
	return len(av.cards)
}

// LastUpdated returns the timestamp of the last view mutation.
func (av *AccountView) LastUpdated() time.Time {
	av.mu.RLock()
	defer av.mu.RUnlock()
	return av.lastUpdated
}

// ══════════════════════════════════════════════════════════════════════════════
// INVALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// Invalidate drops the cached card of a user. Called by event handlers
// when an unlock, a level change or a balance movement makes it stale.
func (av *AccountView) Invalidate(userID shared.UserID) {
	av.mu.Lock()
	defer av.mu.Unlock()

	if _, ok := av.cards[userID]; ok {
		delete(av.cards, userID)
		av.version++
		av.lastUpdated = time.Now().UTC()
	}
}

// InvalidateAll drops every cached card.
func (av *AccountView) InvalidateAll() {
	av.mu.Lock()
	defer av.mu.Unlock()

	av.cards = make(map[shared.UserID]*AccountCard)
	av.version++
	av.lastUpdated = time.Now().UTC()
}

// ══════════════════════════════════════════════════════════════════════════════
// REBUILDER
// ══════════════════════════════════════════════════════════════════════════════

// AccountViewRebuilder rebuilds cards from the authoritative stores.
type AccountViewRebuilder struct {
	view        *AccountView
	goalRepo    achievement.GoalRepository
	counters    achievement.CounterReader
	savingsRepo savings.Repository
	classifier  level.Classifier
}

// NewAccountViewRebuilder creates a rebuilder bound to a view.
func NewAccountViewRebuilder(
	view *AccountView,
	goalRepo achievement.GoalRepository,
	counters achievement.CounterReader,
	savingsRepo savings.Repository,
	classifier level.Classifier,
) *AccountViewRebuilder {
	return &AccountViewRebuilder{
		view:        view,
		goalRepo:    goalRepo,
		counters:    counters,
		savingsRepo: savingsRepo,
		classifier:  classifier,
	}
}

// Rebuild loads the user's state from the authoritative stores, builds a
// fresh card and stores it in the view. Missing goal or position records
// are not errors: the card simply marks them absent.
func (r *AccountViewRebuilder) Rebuild(ctx context.Context, userID shared.UserID) (*AccountCard, error) {
	tier, err := r.classifier.GetLevelValue(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("projections: tier lookup failed: %w", err)
	}

	counters, err := r.counters.Counters(ctx, userID)
	if err != nil {
		counters = nil
	}

	goal, err := r.goalRepo.Get(ctx, userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("projections: goal lookup failed: %w", err)
		}
		goal = nil
	}

	pos, err := r.savingsRepo.Get(ctx, userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("projections: position lookup failed: %w", err)
		}
		pos = nil
	}

	now := time.Now().UTC()
	if pos != nil {
		// In-memory accrual only: the card shows the up-to-date balance,
		// persistence happens on the next mutating operation.
		pos.Accrue(now)
	}

	card, err := r.view.BuildCard(BuildCardParams{
		UserID:   userID,
		Tier:     tier,
		Counters: counters,
		Goal:     goal,
		Position: pos,
		Now:      now,
	})
	if err != nil {
		return nil, err
	}

	r.view.Upsert(card)
	return card, nil
}

// GetOrRebuild returns the cached card or rebuilds it on a miss.
func (r *AccountViewRebuilder) GetOrRebuild(ctx context.Context, userID shared.UserID) (*AccountCard, error) {
	if card := r.view.GetByUser(userID); card != nil {
		return card, nil
	}
	return r.Rebuild(ctx, userID)
}
