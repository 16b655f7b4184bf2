package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopilka-hub/kopilka/internal/domain/admin"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

const otherUserID = shared.UserID("11111111-2222-3333-4444-555555555555")

type fakeAdminRepo struct {
	markers map[admin.Component]*admin.Marker
}

func newFakeAdminRepo() *fakeAdminRepo {
	return &fakeAdminRepo{markers: make(map[admin.Component]*admin.Marker)}
}

func (r *fakeAdminRepo) Create(ctx context.Context, m *admin.Marker) error {
	if _, exists := r.markers[m.Component]; exists {
		return shared.ErrAdminAlreadySet
	}
	r.markers[m.Component] = m
	return nil
}

func (r *fakeAdminRepo) Get(ctx context.Context, component admin.Component) (*admin.Marker, error) {
	if m, ok := r.markers[component]; ok {
		return m, nil
	}
	return nil, shared.ErrNotFound
}

func TestAdminService_Initialize(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAdminRepo()
	svc := NewAdminService(repo)

	require.NoError(t, svc.Initialize(ctx, admin.ComponentVerifier, testUserID))

	marker := repo.markers[admin.ComponentVerifier]
	require.NotNil(t, marker)
	assert.Equal(t, testUserID, marker.AdminID)
	assert.False(t, marker.Bootstrapped)
}

func TestAdminService_Initialize_WriteOnce(t *testing.T) {
	ctx := context.Background()
	svc := NewAdminService(newFakeAdminRepo())

	require.NoError(t, svc.Initialize(ctx, admin.ComponentSavings, testUserID))

	// Повторная инициализация отвергается, даже тем же администратором.
	err := svc.Initialize(ctx, admin.ComponentSavings, testUserID)
	assert.ErrorIs(t, err, shared.ErrAlreadyInitialized)
}

func TestAdminService_Initialize_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewAdminService(newFakeAdminRepo())

	assert.ErrorIs(t, svc.Initialize(ctx, admin.Component("bogus"), testUserID), shared.ErrInvalidInput)
	assert.ErrorIs(t, svc.Initialize(ctx, admin.ComponentVerifier, shared.UserID("not-a-uuid")), shared.ErrInvalidID)
}

func TestAdminService_AssertAdmin_BootstrapsFirstCaller(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAdminRepo()
	svc := NewAdminService(repo)

	// Первый вызов без маркера объявляет вызывающего администратором.
	require.NoError(t, svc.AssertAdmin(ctx, admin.ComponentLevels, testUserID))

	marker := repo.markers[admin.ComponentLevels]
	require.NotNil(t, marker)
	assert.Equal(t, testUserID, marker.AdminID)
	assert.True(t, marker.Bootstrapped)

	// Повторный вызов того же пользователя проходит, чужой - нет.
	require.NoError(t, svc.AssertAdmin(ctx, admin.ComponentLevels, testUserID))
	assert.ErrorIs(t, svc.AssertAdmin(ctx, admin.ComponentLevels, otherUserID), shared.ErrUnauthorized)
}

func TestAdminService_AssertAdmin_RespectsExplicitInitialize(t *testing.T) {
	ctx := context.Background()
	svc := NewAdminService(newFakeAdminRepo())

	require.NoError(t, svc.Initialize(ctx, admin.ComponentVerifier, testUserID))

	require.NoError(t, svc.AssertAdmin(ctx, admin.ComponentVerifier, testUserID))
	assert.ErrorIs(t, svc.AssertAdmin(ctx, admin.ComponentVerifier, otherUserID), shared.ErrUnauthorized)
}

func TestAdminService_AssertAdmin_LoserOfBootstrapRace(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAdminRepo()
	svc := NewAdminService(repo)

	// Маркер уже занят другим участником гонки.
	repo.markers[admin.ComponentAchievements] = &admin.Marker{
		Component:    admin.ComponentAchievements,
		AdminID:      otherUserID,
		Bootstrapped: true,
	}

	err := svc.AssertAdmin(ctx, admin.ComponentAchievements, testUserID)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}
