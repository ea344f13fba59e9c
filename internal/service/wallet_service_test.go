package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/ecocoin-market/internal/pkg/apperror"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
)

func TestWalletService_GetWalletMissingIsZero(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()

	w, err := env.wallets.GetWallet(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, user, w.UserID)
	assert.Zero(t, w.Balance)
}

func TestWalletService_DebitCredit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.fund(t, user, 100)

	require.NoError(t, env.wallets.Debit(ctx, user, 40))
	assert.Equal(t, int64(60), env.balance(t, user))

	err := env.wallets.Debit(ctx, user, 61)
	assert.ErrorIs(t, err, apperror.ErrInsufficientFunds)
	assert.Equal(t, int64(60), env.balance(t, user))

	require.NoError(t, env.wallets.Credit(ctx, user, 15))
	assert.Equal(t, int64(75), env.balance(t, user))

	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(env.wallets.Debit(ctx, user, 0)))
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(env.wallets.Credit(ctx, user, -1)))
}

func TestWalletService_CreditCreatesWallet(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()

	require.NoError(t, env.wallets.Credit(context.Background(), user, 250))
	assert.Equal(t, int64(250), env.balance(t, user))
}

func TestWalletService_DebitRetriesOnVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()
	env.fund(t, user, 100)
	env.store.failNext("UpdateBalance", common.ErrConflict, common.ErrConflict)

	require.NoError(t, env.wallets.Debit(context.Background(), user, 30))
	assert.Equal(t, int64(70), env.balance(t, user))
	assert.Equal(t, 3, env.store.callCount("UpdateBalance"))
}

func TestWalletService_DebitGivesUpAfterRetries(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()
	env.fund(t, user, 100)
	env.store.failNext("UpdateBalance", common.ErrConflict, common.ErrConflict, common.ErrConflict)

	err := env.wallets.Debit(context.Background(), user, 30)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, int64(100), env.balance(t, user))
}

func TestWalletService_LostResponseAppliedOnce(t *testing.T) {
	tests := []struct {
		name    string
		funded  int64
		op      func(ctx context.Context, w *WalletService, user uuid.UUID) error
		balance int64
	}{
		{"debit", 1000, func(ctx context.Context, w *WalletService, user uuid.UUID) error { return w.Debit(ctx, user, 100) }, 900},
		{"credit", 900, func(ctx context.Context, w *WalletService, user uuid.UUID) error { return w.Credit(ctx, user, 50) }, 950},
		{"credit new wallet", -1, func(ctx context.Context, w *WalletService, user uuid.UUID) error { return w.Credit(ctx, user, 50) }, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			user := uuid.New()
			if tt.funded >= 0 {
				env.fund(t, user, tt.funded)
			}
			env.store.loseResponse("UpdateBalance")

			require.NoError(t, tt.op(ctx, env.wallets, user))
			assert.Equal(t, tt.balance, env.balance(t, user))
			assert.Equal(t, 1, env.store.callCount("UpdateBalance"))
		})
	}
}

func TestWalletService_LostResponseThenConcurrentWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.fund(t, user, 1000)
	env.store.loseResponse("UpdateBalance")
	// Чужая запись между потерянным ответом и повтором: версия ушла дальше, но операция уже в кошельке.
	env.store.afterUpdate = func() {
		w, err := env.store.Store.GetWallet(ctx, user)
		require.NoError(t, err)
		require.NoError(t, env.store.Store.UpdateBalance(ctx, user, w.Version, w.Balance-100, uuid.New()))
	}

	require.NoError(t, env.wallets.Debit(ctx, user, 100))
	assert.Equal(t, int64(800), env.balance(t, user))
}

func TestWalletService_ListTransactions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, buyer := uuid.New(), uuid.New()
	env.fund(t, buyer, 1000)
	for i := 0; i < 3; i++ {
		env.buy(t, buyer, env.listing(t, seller, "Yoga Mat", 100), "")
	}

	txns, total, err := env.wallets.ListTransactions(ctx, buyer, 2, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
	assert.Equal(t, 3, total)

	empty, total, err := env.wallets.ListTransactions(ctx, uuid.New(), 0, -5)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Zero(t, total)
}
