package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/savings"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

func TestGetPositionHandler_ReturnsStoredStateWithoutAccrual(t *testing.T) {
	ctx := context.Background()

	// Год без мутаций: GetBalance доначислил бы процент, этот запрос
	// обязан вернуть позицию как есть.
	pos := savings.NewPosition(testUserID, level.TierGold, time.Now().UTC().Add(-365*24*time.Hour))
	pos.Principal = 1000
	pos.InterestEarned = 7

	repo := &fakeSavingsRepo{position: pos}
	handler := NewGetPositionHandler(repo)

	result, err := handler.Handle(ctx, GetPositionQuery{UserID: testUserID})
	require.NoError(t, err)

	assert.Equal(t, testUserID.String(), result.Position.UserID)
	assert.Equal(t, int64(1000), result.Position.Principal)
	assert.Equal(t, int64(7), result.Position.InterestEarned)
	assert.Equal(t, level.TierGold.String(), result.Position.Tier)
	assert.Equal(t, savings.GoldAPY.Int64(), result.Position.APYBps)
	assert.Equal(t, pos.LastUpdated, result.Position.LastUpdated)
	assert.Equal(t, 0, repo.saves)
}

func TestGetPositionHandler_MissingPositionIsNotFound(t *testing.T) {
	ctx := context.Background()
	handler := NewGetPositionHandler(&fakeSavingsRepo{})

	_, err := handler.Handle(ctx, GetPositionQuery{UserID: testUserID})
	assert.ErrorIs(t, err, shared.ErrPositionNotFound)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetPositionHandler_Validation(t *testing.T) {
	ctx := context.Background()
	handler := NewGetPositionHandler(&fakeSavingsRepo{})

	_, err := handler.Handle(ctx, GetPositionQuery{UserID: "nope"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
