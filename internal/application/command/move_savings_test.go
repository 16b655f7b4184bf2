package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/savings"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/keylock"
)

func TestSavingsHandler_FirstDepositCreatesPosition(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSavingsRepo{}
	bus := &captureBus{}
	handler := NewSavingsHandler(repo, &stubClassifier{tier: level.TierGold}, bus, keylock.New())

	result, err := handler.HandleDeposit(ctx, DepositSavingsCommand{
		UserID: testUserID,
		Amount: 500,
	})
	require.NoError(t, err)

	// Позиция создана под текущий уровень пользователя.
	assert.Equal(t, shared.Amount(500), result.Principal)
	assert.Equal(t, shared.Amount(0), result.InterestEarned)
	assert.Equal(t, level.TierGold, result.Tier)

	require.NotNil(t, repo.position)
	assert.Equal(t, savings.GoldAPY, repo.position.APYBps)

	require.Len(t, bus.events, 1)
	assert.Equal(t, shared.EventSavingsDeposited, bus.events[0].EventType())
}

func TestSavingsHandler_DepositSettlesInterestUnderOldRate(t *testing.T) {
	ctx := context.Background()

	pos := savings.NewPosition(testUserID, level.TierBronze, time.Now().UTC().Add(-365*24*time.Hour))
	pos.Principal = 1000

	repo := &fakeSavingsRepo{position: pos}
	bus := &captureBus{}
	handler := NewSavingsHandler(repo, &stubClassifier{tier: level.TierPlatinum}, bus, keylock.New())

	result, err := handler.HandleDeposit(ctx, DepositSavingsCommand{
		UserID: testUserID,
		Amount: 100,
	})
	require.NoError(t, err)

	// Год под ставкой Bronze: ровно 20; Platinum действует только вперёд.
	assert.Equal(t, shared.Amount(20), result.AccruedNow)
	assert.Equal(t, shared.Amount(1100), result.Principal)
	assert.Equal(t, level.TierPlatinum, result.Tier)
	assert.Equal(t, 1, repo.saves)

	// Зачисленный процент публикуется отдельным событием.
	require.Len(t, bus.events, 2)
	assert.Equal(t, shared.EventSavingsDeposited, bus.events[0].EventType())
	accrual, ok := bus.events[1].(shared.InterestAccruedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(20), accrual.Accrued)
	assert.Equal(t, int64(20), accrual.TotalInterest)
	assert.Equal(t, level.TierPlatinum.Int(), accrual.Tier)
}

func TestSavingsHandler_WithdrawDebitsPrincipalFirst(t *testing.T) {
	ctx := context.Background()

	pos := savings.NewPosition(testUserID, level.TierBronze, time.Now().UTC())
	pos.Principal = 500
	pos.InterestEarned = 20

	repo := &fakeSavingsRepo{position: pos}
	bus := &captureBus{}
	handler := NewSavingsHandler(repo, &stubClassifier{tier: level.TierBronze}, bus, keylock.New())

	result, err := handler.HandleWithdraw(ctx, WithdrawSavingsCommand{
		UserID: testUserID,
		Amount: 510,
	})
	require.NoError(t, err)

	assert.Equal(t, shared.Amount(0), result.Principal)
	assert.Equal(t, shared.Amount(10), result.InterestEarned)
	assert.Equal(t, shared.Amount(10), result.Balance)

	require.Len(t, bus.events, 1)
	assert.Equal(t, shared.EventSavingsWithdrawn, bus.events[0].EventType())
}

func TestSavingsHandler_WithdrawInsufficientNotPersisted(t *testing.T) {
	ctx := context.Background()

	pos := savings.NewPosition(testUserID, level.TierBronze, time.Now().UTC())
	pos.Principal = 100

	repo := &fakeSavingsRepo{position: pos}
	handler := NewSavingsHandler(repo, &stubClassifier{tier: level.TierBronze}, &captureBus{}, keylock.New())

	_, err := handler.HandleWithdraw(ctx, WithdrawSavingsCommand{
		UserID: testUserID,
		Amount: 500,
	})
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)
	assert.Equal(t, 0, repo.saves)
}

func TestSavingsHandler_WithdrawWithoutPosition(t *testing.T) {
	ctx := context.Background()
	handler := NewSavingsHandler(&fakeSavingsRepo{}, &stubClassifier{tier: level.TierBronze}, &captureBus{}, keylock.New())

	// Позиции нет - это NotFound, а не нехватка средств.
	_, err := handler.HandleWithdraw(ctx, WithdrawSavingsCommand{
		UserID: testUserID,
		Amount: 10,
	})
	assert.ErrorIs(t, err, shared.ErrPositionNotFound)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.False(t, shared.IsInsufficientFunds(err))
}

func TestSavingsHandler_ReentrancyGuard(t *testing.T) {
	ctx := context.Background()
	locks := keylock.New()
	handler := NewSavingsHandler(&fakeSavingsRepo{}, &stubClassifier{tier: level.TierBronze}, &captureBus{}, locks)

	require.True(t, locks.TryAcquire(testUserID.String()))

	_, err := handler.HandleDeposit(ctx, DepositSavingsCommand{UserID: testUserID, Amount: 100})
	assert.ErrorIs(t, err, shared.ErrOperationInFlight)

	_, err = handler.HandleWithdraw(ctx, WithdrawSavingsCommand{UserID: testUserID, Amount: 100})
	assert.ErrorIs(t, err, shared.ErrOperationInFlight)
}

func TestSavingsHandler_Validation(t *testing.T) {
	ctx := context.Background()
	handler := NewSavingsHandler(&fakeSavingsRepo{}, &stubClassifier{tier: level.TierBronze}, &captureBus{}, keylock.New())

	_, err := handler.HandleDeposit(ctx, DepositSavingsCommand{UserID: testUserID, Amount: 0})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = handler.HandleWithdraw(ctx, WithdrawSavingsCommand{UserID: testUserID, Amount: -5})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
