// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique user identifier (UUID format).
// The host environment authenticates users; the engine only partitions
// records by this key.
type UserID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	return uuidRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.ToLower(strings.TrimSpace(id)))
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "invalid user ID format")
	}
	return uid, nil
}

// CourseID represents a course identifier on the learning platform.
type CourseID string

// IsValid checks course ID length constraints.
func (c CourseID) IsValid() bool {
	s := string(c)
	return len(s) >= 1 && len(s) <= 100 && !strings.ContainsAny(s, " \t\n\r")
}

// String returns the string representation.
func (c CourseID) String() string {
	return string(c)
}

// ═══════════════════════════════════════════════════════════════════════════
// ProofID Value Object
// ═══════════════════════════════════════════════════════════════════════════

// ProofIDSize is the size of a proof content identifier in bytes.
const ProofIDSize = 32

// ProofID is the content-derived identifier of a proof blob (Keccak-256 of
// the whole blob). Identical blobs always yield identical ids.
type ProofID [ProofIDSize]byte

// IsZero returns true if the proof ID is all zeroes (unset).
func (p ProofID) IsZero() bool {
	return p == ProofID{}
}

// String returns the lowercase hex representation.
func (p ProofID) String() string {
	return hex.EncodeToString(p[:])
}

// Bytes returns a copy of the underlying bytes.
func (p ProofID) Bytes() []byte {
	b := make([]byte, ProofIDSize)
	copy(b, p[:])
	return b
}

// ProofIDFromBytes creates a ProofID from a 32-byte slice.
func ProofIDFromBytes(b []byte) (ProofID, error) {
	var id ProofID
	if len(b) != ProofIDSize {
		return id, NewDomainError("shared", "ProofIDFromBytes", ErrInvalidID,
			fmt.Sprintf("proof id must be %d bytes, got %d", ProofIDSize, len(b)))
	}
	copy(id[:], b)
	return id, nil
}

// ProofIDFromHex parses a proof ID from its hex representation.
func ProofIDFromHex(s string) (ProofID, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return ProofID{}, WrapError("shared", "ProofIDFromHex", ErrInvalidID, "invalid hex", err)
	}
	return ProofIDFromBytes(b)
}

// ═══════════════════════════════════════════════════════════════════════════
// Money Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Amount represents a monetary amount in the smallest indivisible unit.
// Balances in the engine are never negative; negative values appear only
// transiently in arithmetic.
type Amount int64

// IsPositive returns true for strictly positive amounts.
func (a Amount) IsPositive() bool {
	return a > 0
}

// IsNegative returns true for negative amounts.
func (a Amount) IsNegative() bool {
	return a < 0
}

// Int64 returns the underlying int64 value.
func (a Amount) Int64() int64 {
	return int64(a)
}

// Add returns the sum of two amounts.
func (a Amount) Add(other Amount) Amount {
	return a + other
}

// Sub returns the difference of two amounts.
func (a Amount) Sub(other Amount) Amount {
	return a - other
}

// BasisPoints represents a rate where 10000 bps = 100%.
type BasisPoints int64

// BpsDenominator is the basis-point scale (10000 bps = 100%).
const BpsDenominator = 10000

// IsValid checks that the rate is within [0, 10000].
func (b BasisPoints) IsValid() bool {
	return b >= 0 && b <= BpsDenominator
}

// Int64 returns the underlying int64 value.
func (b BasisPoints) Int64() int64 {
	return int64(b)
}

// Percent returns the rate as a percentage for display.
func (b BasisPoints) Percent() float64 {
	return float64(b) / 100.0
}

// String returns a human-readable representation, e.g. "2.00%".
func (b BasisPoints) String() string {
	return fmt.Sprintf("%.2f%%", b.Percent())
}
