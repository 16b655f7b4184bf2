package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/kopilka-hub/kopilka/internal/domain/admin"
	"github.com/kopilka-hub/kopilka/internal/domain/proof"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION COMMANDS
// Admin-gated operations: explicit component initialization and
// verifying material replacement. The first caller of a guarded
// operation bootstraps the component admin if none was initialized.
// ══════════════════════════════════════════════════════════════════════════════

// InitializeComponentCommand explicitly records a component admin.
type InitializeComponentCommand struct {
	// Component is the engine component to initialize.
	Component admin.Component

	// AdminID is the user to record as admin.
	AdminID shared.UserID

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c InitializeComponentCommand) Validate() error {
	if !c.Component.IsValid() {
		return fmt.Errorf("initialize_component: unknown component: %s", c.Component)
	}
	if !c.AdminID.IsValid() {
		return errors.New("initialize_component: valid admin_id is required")
	}
	return nil
}

// SetVerifyingMaterialCommand replaces the verifying material.
type SetVerifyingMaterialCommand struct {
	// CallerID must be the verifier component admin (or its first caller).
	CallerID shared.UserID

	// Material is the raw verifying material.
	Material []byte

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SetVerifyingMaterialCommand) Validate() error {
	if !c.CallerID.IsValid() {
		return errors.New("set_verifying_material: valid caller_id is required")
	}
	if len(c.Material) == 0 {
		return errors.New("set_verifying_material: material is required")
	}
	return nil
}

// SetVerifyingMaterialResult contains the stored material's identity.
type SetVerifyingMaterialResult struct {
	// ContentHash is the Keccak-256 hash of the stored material.
	ContentHash shared.ProofID
}

// ConfigureHandler handles configuration commands.
type ConfigureHandler struct {
	authorizer admin.Authorizer
	materials  proof.MaterialStore
}

// NewConfigureHandler creates a new ConfigureHandler.
func NewConfigureHandler(authorizer admin.Authorizer, materials proof.MaterialStore) *ConfigureHandler {
	return &ConfigureHandler{
		authorizer: authorizer,
		materials:  materials,
	}
}

// HandleInitialize executes the explicit component initialization.
// Returns shared.ErrAdminAlreadySet on a second initialization.
func (h *ConfigureHandler) HandleInitialize(ctx context.Context, cmd InitializeComponentCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("initialize_component: validation failed: %w", err)
	}

	return h.authorizer.Initialize(ctx, cmd.Component, cmd.AdminID)
}

// HandleSetMaterial replaces the verifying material after checking the
// caller against the verifier component admin.
func (h *ConfigureHandler) HandleSetMaterial(ctx context.Context, cmd SetVerifyingMaterialCommand) (*SetVerifyingMaterialResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("set_verifying_material: validation failed: %w", err)
	}

	if err := h.authorizer.AssertAdmin(ctx, admin.ComponentVerifier, cmd.CallerID); err != nil {
		return nil, err
	}

	hash, err := h.materials.SetMaterial(ctx, cmd.Material)
	if err != nil {
		return nil, fmt.Errorf("set_verifying_material: %w", err)
	}

	return &SetVerifyingMaterialResult{ContentHash: hash}, nil
}
