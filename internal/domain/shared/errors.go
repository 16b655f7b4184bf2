// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrTerminalState    = errors.New("record is in a terminal state")

	// Configuration errors
	ErrConfigurationMissing = errors.New("required configuration is not set")
	ErrAlreadyInitialized   = errors.New("already initialized")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Funds errors
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOperationInFlight      = errors.New("operation already in flight for this key")

	// External capability errors
	ErrExternalCall       = errors.New("external capability call failed")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "proof", "achievement", "savings"
	Op      string // Operation that failed, e.g., "SubmitProof", "Withdraw"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Proof domain errors
var (
	ErrInvalidProofFormat  = NewDomainError("proof", "Verify", ErrInvalidFormat, "invalid proof blob format")
	ErrVerificationFailed  = NewDomainError("proof", "Verify", ErrInvalidEntity, "proof verification failed")
	ErrVerifierCallFailed  = NewDomainError("proof", "Invoke", ErrExternalCall, "verifier capability call failed")
	ErrProofRecordNotFound = NewDomainError("proof", "Find", ErrNotFound, "proof record not found")
)

// Achievement domain errors
var (
	ErrGoalNotFound        = NewDomainError("achievement", "Find", ErrNotFound, "savings goal not found")
	ErrCourseNotFound      = NewDomainError("achievement", "FindCourse", ErrNotFound, "course completion not found")
	ErrAlreadyAchieved     = NewDomainError("achievement", "SubmitProof", ErrTerminalState, "achievement already unlocked")
	ErrAlreadyCompleted    = NewDomainError("achievement", "CompleteCourse", ErrTerminalState, "course already completed")
	ErrInvalidTargetAmount = NewDomainError("achievement", "SetGoal", ErrInvalidInput, "target amount must be positive")
	ErrInvalidEscrowAmount = NewDomainError("achievement", "Escrow", ErrInvalidInput, "escrow amount must be positive")
	ErrEscrowInsufficient  = NewDomainError("achievement", "WithdrawEscrow", ErrInsufficientFunds, "escrow balance is insufficient")
	ErrInvalidBadgeLevel   = NewDomainError("achievement", "CompleteCourse", ErrValueOutOfRange, "invalid badge level")
)

// Level domain errors
var (
	ErrLevelNotFound = NewDomainError("level", "Find", ErrNotFound, "user level record not found")
	ErrInvalidTier   = NewDomainError("level", "Validate", ErrValueOutOfRange, "invalid tier value")
)

// Savings domain errors
var (
	ErrPositionNotFound    = NewDomainError("savings", "Find", ErrNotFound, "savings position not found")
	ErrInvalidAmount       = NewDomainError("savings", "Validate", ErrInvalidInput, "amount must be positive")
	ErrInsufficientBalance = NewDomainError("savings", "Withdraw", ErrInsufficientFunds, "balance is insufficient")
)

// Admin / configuration errors
var (
	ErrNotAuthorized          = NewDomainError("admin", "Assert", ErrUnauthorized, "caller is not the recorded admin")
	ErrNotRecordOwner         = NewDomainError("admin", "AssertOwner", ErrUnauthorized, "caller does not own this record")
	ErrAdminAlreadySet        = NewDomainError("admin", "Initialize", ErrAlreadyInitialized, "admin is already recorded for this component")
	ErrComponentNotConfigured = NewDomainError("admin", "Check", ErrConfigurationMissing, "component dependency is not configured")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTerminalState checks if the error is an "already in terminal state" error.
func IsTerminalState(err error) bool {
	return errors.Is(err, ErrTerminalState)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsInsufficientFunds checks if the error is an "insufficient funds" error.
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

// IsUnauthorized checks if the error is an authorization error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsConfigurationMissing checks if the error reports absent configuration.
func IsConfigurationMissing(err error) bool {
	return errors.Is(err, ErrConfigurationMissing)
}
