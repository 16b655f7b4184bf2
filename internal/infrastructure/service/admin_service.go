package service

import (
	"context"
	"errors"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/admin"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// AdminService implements admin.Authorizer over the marker repository.
//
// Two paths create a marker: explicit Initialize by an operator, and
// lazy bootstrap where the first caller of a guarded operation becomes
// the component admin. Concurrent bootstraps race on the write-once
// marker row; the loser re-reads and is authorized only if it happens
// to be the winner.
type AdminService struct {
	repo admin.Repository
}

// NewAdminService creates a new AdminService.
func NewAdminService(repo admin.Repository) *AdminService {
	return &AdminService{repo: repo}
}

// Initialize explicitly records the component admin.
// Returns shared.ErrAdminAlreadySet on a second initialization.
func (s *AdminService) Initialize(ctx context.Context, component admin.Component, adminID shared.UserID) error {
	if !component.IsValid() {
		return shared.ErrInvalidInput
	}
	if !adminID.IsValid() {
		return shared.ErrInvalidID
	}

	return s.repo.Create(ctx, &admin.Marker{
		Component:    component,
		AdminID:      adminID,
		Bootstrapped: false,
		CreatedAt:    time.Now().UTC(),
	})
}

// AssertAdmin checks that the caller is the recorded component admin,
// bootstrapping the marker to the first caller if none exists.
func (s *AdminService) AssertAdmin(ctx context.Context, component admin.Component, caller shared.UserID) error {
	if !component.IsValid() {
		return shared.ErrInvalidInput
	}
	if !caller.IsValid() {
		return shared.ErrInvalidID
	}

	marker, err := s.repo.Get(ctx, component)
	if errors.Is(err, shared.ErrNotFound) {
		marker, err = s.bootstrap(ctx, component, caller)
	}
	if err != nil {
		return err
	}

	if marker.AdminID != caller {
		return shared.ErrNotAuthorized
	}

	return nil
}

// bootstrap claims the marker for the caller. If another caller wins
// the race, the stored marker is returned instead.
func (s *AdminService) bootstrap(ctx context.Context, component admin.Component, caller shared.UserID) (*admin.Marker, error) {
	marker := &admin.Marker{
		Component:    component,
		AdminID:      caller,
		Bootstrapped: true,
		CreatedAt:    time.Now().UTC(),
	}

	err := s.repo.Create(ctx, marker)
	if err == nil {
		return marker, nil
	}
	if errors.Is(err, shared.ErrAdminAlreadySet) {
		return s.repo.Get(ctx, component)
	}

	return nil, err
}
