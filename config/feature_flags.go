package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts.
// Toggles gate the optional layers of the engine (caches, projections,
// async dispatch) and act as kill switches for money-moving operations.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID  string // engine user ID
	IsAdmin bool   // component admin
}

// Predefined feature flag names.
const (
	// === Cache layers ===
	FeatureCacheProofDedup = "cache.proof_dedup" // Redis fast path for seen proofs
	FeatureCacheLevels     = "cache.levels"      // Redis cache for user tiers
	FeatureCacheAccounts   = "cache.accounts"    // denormalized account cards

	// === Event dispatch ===
	FeatureEventsAsync        = "events.async"         // dispatch handlers off the hot path
	FeatureEventsRedisPublish = "events.redis_publish" // mirror events to Redis pub/sub

	// === Money movement kill switches ===
	FeatureSavingsDeposits    = "savings.deposits"
	FeatureSavingsWithdrawals = "savings.withdrawals"
	FeatureEscrowMovement     = "escrow.movement"

	// === Achievement features ===
	FeatureCourseBadges = "achievements.course_badges" // derive badges from proof outputs

	// === Experimental Features ===
	FeatureExperimentalFullVerification = "experimental.full_verification" // cryptographic proof checking
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Cache layers - enabled by default, the engine works without them
	ff.features[FeatureCacheProofDedup] = &Feature{
		Name:           FeatureCacheProofDedup,
		Description:    "Redis fast path for proof deduplication",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCacheLevels] = &Feature{
		Name:           FeatureCacheLevels,
		Description:    "Redis cache for user tiers",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCacheAccounts] = &Feature{
		Name:           FeatureCacheAccounts,
		Description:    "Denormalized account card projection",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Event dispatch
	ff.features[FeatureEventsAsync] = &Feature{
		Name:           FeatureEventsAsync,
		Description:    "Dispatch event handlers asynchronously",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureEventsRedisPublish] = &Feature{
		Name:           FeatureEventsRedisPublish,
		Description:    "Mirror domain events to Redis pub/sub",
		Enabled:        false,
		RolloutPercent: 0,
	}

	// Money movement - enabled, these are operational kill switches
	ff.features[FeatureSavingsDeposits] = &Feature{
		Name:           FeatureSavingsDeposits,
		Description:    "Allow savings deposits",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSavingsWithdrawals] = &Feature{
		Name:           FeatureSavingsWithdrawals,
		Description:    "Allow savings withdrawals",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureEscrowMovement] = &Feature{
		Name:           FeatureEscrowMovement,
		Description:    "Allow escrow deposits and withdrawals",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Achievement features
	ff.features[FeatureCourseBadges] = &Feature{
		Name:           FeatureCourseBadges,
		Description:    "Derive badge levels from proof public outputs",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental - off by default
	ff.features[FeatureExperimentalFullVerification] = &Feature{
		Name:           FeatureExperimentalFullVerification,
		Description:    "Cryptographic verification against the stored material",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment reads feature overrides from environment variables.
// Example: FEATURE_CACHE_LEVELS=false (disable)
// Example: FEATURE_EVENTS_REDIS_PUBLISH=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		val := os.Getenv(envKey)
		if val == "" {
			continue
		}

		// Try boolean first
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		// Try percentage
		if pct, err := strconv.Atoi(val); err == nil && pct >= 0 && pct <= 100 {
			feature.Enabled = pct > 0
			feature.RolloutPercent = pct
		}
	}
}

// featureNameToEnvKey converts "cache.levels" to "FEATURE_CACHE_LEVELS".
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Check user overrides first
	if ctx != nil && ctx.UserID != "" {
		if overrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	if !feature.Enabled {
		return false
	}

	// Check time window
	now := time.Now().UTC()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 {
		if ctx == nil || ctx.UserID == "" {
			return false
		}
		return isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return true
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(userID))
	h.Write([]byte(featureName))
	bucket := int(h.Sum32() % 100)
	return bucket < percent
}

// SetUserOverride forces a feature on or off for a specific user.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.userOverrides[userID] == nil {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("rollout percent must be 0-100, got %d", percent)
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return fmt.Errorf("unknown feature: %s", featureName)
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature entirely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a snapshot of all features.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for name, feature := range ff.features {
		clone := *feature
		result[name] = &clone
	}
	return result
}

// MoneyMovementEnabled reports whether any money-moving operation is allowed.
func (ff *FeatureFlags) MoneyMovementEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureSavingsDeposits, ctx) ||
		ff.IsEnabled(FeatureSavingsWithdrawals, ctx) ||
		ff.IsEnabled(FeatureEscrowMovement, ctx)
}
