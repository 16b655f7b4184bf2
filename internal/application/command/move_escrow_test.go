package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/proof"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/keylock"
)

func escrowGoal(t *testing.T, target shared.Amount) *achievement.Goal {
	t.Helper()
	g, err := achievement.NewGoal(testUserID, target, nil)
	require.NoError(t, err)
	return g
}

func TestEscrowHandler_DepositAndWithdraw(t *testing.T) {
	ctx := context.Background()
	repo := &fakeGoalRepo{goal: escrowGoal(t, 1000)}
	bus := &captureBus{}
	handler := NewEscrowHandler(repo, bus, keylock.New())

	deposited, err := handler.HandleDeposit(ctx, DepositEscrowCommand{
		UserID: testUserID,
		Amount: 300,
	})
	require.NoError(t, err)
	assert.Equal(t, shared.Amount(300), deposited.SavedAmount)

	withdrawn, err := handler.HandleWithdraw(ctx, WithdrawEscrowCommand{
		UserID: testUserID,
		Amount: 120,
	})
	require.NoError(t, err)
	assert.Equal(t, shared.Amount(180), withdrawn.SavedAmount)

	require.Len(t, bus.events, 2)
	assert.Equal(t, shared.EventEscrowDeposited, bus.events[0].EventType())
	assert.Equal(t, shared.EventEscrowWithdrawn, bus.events[1].EventType())
}

func TestEscrowHandler_DepositIntoAchievedGoalRejected(t *testing.T) {
	ctx := context.Background()
	goal := escrowGoal(t, 1000)
	_, err := goal.DepositEscrow(400)
	require.NoError(t, err)
	require.NoError(t, goal.MarkAchieved(proof.ContentHash([]byte("proof"))))

	repo := &fakeGoalRepo{goal: goal}
	handler := NewEscrowHandler(repo, &captureBus{}, keylock.New())

	_, err = handler.HandleDeposit(ctx, DepositEscrowCommand{
		UserID: testUserID,
		Amount: 100,
	})
	assert.ErrorIs(t, err, shared.ErrTerminalState)

	// Вывод из достигнутой цели разрешён, пока остаются средства.
	result, err := handler.HandleWithdraw(ctx, WithdrawEscrowCommand{
		UserID: testUserID,
		Amount: 400,
	})
	require.NoError(t, err)
	assert.Equal(t, shared.Amount(0), result.SavedAmount)
}

func TestEscrowHandler_WithdrawOverBalance(t *testing.T) {
	ctx := context.Background()
	goal := escrowGoal(t, 1000)
	_, err := goal.DepositEscrow(50)
	require.NoError(t, err)

	repo := &fakeGoalRepo{goal: goal}
	handler := NewEscrowHandler(repo, &captureBus{}, keylock.New())

	_, err = handler.HandleWithdraw(ctx, WithdrawEscrowCommand{
		UserID: testUserID,
		Amount: 100,
	})
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)
}

func TestEscrowHandler_MissingGoal(t *testing.T) {
	ctx := context.Background()
	handler := NewEscrowHandler(&fakeGoalRepo{}, &captureBus{}, keylock.New())

	_, err := handler.HandleDeposit(ctx, DepositEscrowCommand{
		UserID: testUserID,
		Amount: 100,
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEscrowHandler_Validation(t *testing.T) {
	ctx := context.Background()
	handler := NewEscrowHandler(&fakeGoalRepo{}, &captureBus{}, keylock.New())

	_, err := handler.HandleDeposit(ctx, DepositEscrowCommand{UserID: testUserID, Amount: 0})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = handler.HandleWithdraw(ctx, WithdrawEscrowCommand{UserID: testUserID, Amount: -1})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
