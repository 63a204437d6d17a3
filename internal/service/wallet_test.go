package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/rewards-platform/internal/model"
)

func TestWallet_ScenarioB(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.addUser(t, "b@example.com")

	_, err := env.svc.RequestWalletTx(ctx, u.ID, "withdraw", "5")
	require.ErrorIs(t, err, ErrBelowMinimum)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = env.svc.RequestWalletTx(ctx, u.ID, "withdraw", "20")
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, KindInsufficientBalance, KindOf(err))

	history, err := env.svc.WalletHistory(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestWallet_ScenarioC(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.addUser(t, "c@example.com")
	require.NoError(t, env.svc.SetUserPoints(ctx, u.ID, 100))

	receipt, err := env.svc.RequestWalletTx(ctx, u.ID, "deposit", "5")
	require.NoError(t, err)
	assert.Equal(t, model.WalletPending, receipt.Tx.Status)
	assert.Equal(t, int64(50), receipt.Tx.PointsDelta)
	assert.Equal(t, int64(10), receipt.Tx.RateUSDToPoints)
	assert.Equal(t, model.DefaultSettings().ManagerContact, receipt.Manager)
	assert.Equal(t, int64(100), env.balance(t, u.ID), "pending request does not touch balance")

	require.NoError(t, env.svc.ApproveWalletTx(ctx, receipt.Tx.ID))
	assert.Equal(t, int64(150), env.balance(t, u.ID))

	err = env.svc.ApproveWalletTx(ctx, receipt.Tx.ID)
	require.ErrorIs(t, err, ErrNotPending)
	err = env.svc.RejectWalletTx(ctx, receipt.Tx.ID)
	require.ErrorIs(t, err, ErrNotPending)
	assert.Equal(t, int64(150), env.balance(t, u.ID))

	history, err := env.svc.WalletHistory(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.WalletApproved, history[0].Status)
	require.NotNil(t, history[0].ProcessedAt)
}

func TestWallet_RejectLeavesBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.addUser(t, "reject@example.com")
	require.NoError(t, env.svc.SetUserPoints(ctx, u.ID, 300))

	receipt, err := env.svc.RequestWalletTx(ctx, u.ID, "withdraw", "12.5")
	require.NoError(t, err)
	assert.Equal(t, int64(-125), receipt.Tx.PointsDelta)

	require.NoError(t, env.svc.RejectWalletTx(ctx, receipt.Tx.ID))
	assert.Equal(t, int64(300), env.balance(t, u.ID))

	require.ErrorIs(t, env.svc.ApproveWalletTx(ctx, receipt.Tx.ID), ErrNotPending)
	assert.Equal(t, int64(300), env.balance(t, u.ID))

	pending, err := env.svc.PendingRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestWallet_RateSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.addUser(t, "rate@example.com")

	first, err := env.svc.RequestWalletTx(ctx, u.ID, "deposit", "7.55")
	require.NoError(t, err)
	assert.Equal(t, int64(75), first.Tx.PointsDelta)

	_, err = env.svc.UpdateSettings(ctx, SettingsUpdate{
		USDToPoints:    "20.9",
		MinDepositUSD:  "5",
		MinWithdrawUSD: "10",
	})
	require.NoError(t, err)

	second, err := env.svc.RequestWalletTx(ctx, u.ID, "deposit", "7.55")
	require.NoError(t, err)
	assert.Equal(t, int64(20), second.Tx.RateUSDToPoints)
	assert.Equal(t, int64(151), second.Tx.PointsDelta)

	require.NoError(t, env.svc.ApproveWalletTx(ctx, first.Tx.ID))
	assert.Equal(t, int64(75), env.balance(t, u.ID))
}

func TestWallet_RequestValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.addUser(t, "valid@example.com")

	tests := []struct {
		name    string
		txType  string
		amount  string
		wantErr error
	}{
		{name: "unknown type", txType: "transfer", amount: "10", wantErr: ErrInvalidType},
		{name: "empty type", txType: "", amount: "10", wantErr: ErrInvalidType},
		{name: "not a number", txType: "deposit", amount: "ten", wantErr: ErrInvalidAmount},
		{name: "zero", txType: "deposit", amount: "0", wantErr: ErrInvalidAmount},
		{name: "negative", txType: "deposit", amount: "-5", wantErr: ErrInvalidAmount},
		{name: "below deposit minimum", txType: "deposit", amount: "4.99", wantErr: ErrBelowMinimum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.RequestWalletTx(ctx, u.ID, tt.txType, tt.amount)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestWallet_CommaDecimalSeparator(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, "comma@example.com")

	receipt, err := env.svc.RequestWalletTx(context.Background(), u.ID, "deposit", "7,5")
	require.NoError(t, err)
	assert.Equal(t, "7.5", receipt.Tx.AmountUSD.String())
	assert.Equal(t, int64(75), receipt.Tx.PointsDelta)
}

func TestWallet_AmountIsNotRoundedToCents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.addUser(t, "exact@example.com")
	require.NoError(t, env.svc.SetUserPoints(ctx, u.ID, 1000))

	_, err := env.svc.RequestWalletTx(ctx, u.ID, "withdraw", "9.995")
	require.ErrorIs(t, err, ErrBelowMinimum)

	receipt, err := env.svc.RequestWalletTx(ctx, u.ID, "deposit", "5.999")
	require.NoError(t, err)
	assert.Equal(t, "5.999", receipt.Tx.AmountUSD.String())
	assert.Equal(t, int64(59), receipt.Tx.PointsDelta)

	require.NoError(t, env.svc.ApproveWalletTx(ctx, receipt.Tx.ID))
	assert.Equal(t, int64(1059), env.balance(t, u.ID))
}

func TestWallet_SubCentAmountIsValid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.addUser(t, "tiny@example.com")

	_, err := env.svc.UpdateSettings(ctx, SettingsUpdate{USDToPoints: "10", MinDepositUSD: "0.001", MinWithdrawUSD: "10"})
	require.NoError(t, err)

	receipt, err := env.svc.RequestWalletTx(ctx, u.ID, "deposit", "0.004")
	require.NoError(t, err)
	assert.Equal(t, int64(0), receipt.Tx.PointsDelta)
}

func TestWallet_UnknownUserAndTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.RequestWalletTx(ctx, 404, "deposit", "10")
	assert.Equal(t, KindNotFound, KindOf(err))

	err = env.svc.ApproveWalletTx(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	err = env.svc.RejectWalletTx(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWallet_WithdrawWithoutHold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.addUser(t, "nohold@example.com")
	require.NoError(t, env.svc.SetUserPoints(ctx, u.ID, 200))

	first, err := env.svc.RequestWalletTx(ctx, u.ID, "withdraw", "20")
	require.NoError(t, err)
	second, err := env.svc.RequestWalletTx(ctx, u.ID, "withdraw", "20")
	require.NoError(t, err, "balance is checked at request time without reservation")

	require.NoError(t, env.svc.ApproveWalletTx(ctx, first.Tx.ID))
	require.NoError(t, env.svc.ApproveWalletTx(ctx, second.Tx.ID))
	assert.Equal(t, int64(-200), env.balance(t, u.ID))
}

func TestWallet_HistoryAndPendingOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.addUser(t, "history@example.com")
	other := env.addUser(t, "other@example.com")

	var last string
	for i := range walletHistoryLimit + 1 {
		receipt, err := env.svc.RequestWalletTx(ctx, u.ID, "deposit", fmt.Sprintf("%d", 5+i))
		require.NoError(t, err)
		last = receipt.Tx.ID
	}
	_, err := env.svc.RequestWalletTx(ctx, other.ID, "deposit", "5")
	require.NoError(t, err)

	history, err := env.svc.WalletHistory(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, history, walletHistoryLimit)
	assert.Equal(t, last, history[0].ID)
	for _, tx := range history {
		assert.Equal(t, u.ID, tx.UserID)
	}

	pending, err := env.svc.PendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pending, walletHistoryLimit+2)
	assert.Equal(t, other.ID, pending[0].UserID)
	assert.Equal(t, "other@example.com", pending[0].Email)
	assert.Equal(t, "User other@example.com", pending[0].FullName)
}
