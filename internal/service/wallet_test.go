package service

import (
	"context"
	"testing"

	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositCreditsAndAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.newUser(t, "alice", 0)

	tx, err := f.wallets.Deposit(ctx, alice, 25*unit, "wire-42", &f.admin)
	require.NoError(t, err)
	assert.Equal(t, domain.TxTypeDeposit, tx.Type)
	assert.Equal(t, "wire-42", tx.ReferenceID)
	assert.Equal(t, int64(25*unit), f.balance(t, alice))

	w, err := f.wallets.GetWallet(ctx, alice)
	require.NoError(t, err)
	entries, err := NewAuditService(f.store).History(ctx, domain.EntityWallet, w.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "deposit", entries[0].Action)
}

func TestDepositValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice", 0)

	_, err := f.wallets.Deposit(context.Background(), alice, 0, "", nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.wallets.Deposit(context.Background(), uuid.New(), unit, "", nil)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestStatementPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.newUser(t, "alice", 0)
	for i := 1; i <= 5; i++ {
		_, err := f.wallets.Deposit(ctx, alice, int64(i)*unit, "", &f.admin)
		require.NoError(t, err)
	}

	page1, err := f.wallets.Statement(ctx, alice, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, int64(5*unit), page1[0].Amount)
	assert.Equal(t, int64(4*unit), page1[1].Amount)

	page3, err := f.wallets.Statement(ctx, alice, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, int64(unit), page3[0].Amount)

	empty, err := f.wallets.Statement(ctx, alice, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
