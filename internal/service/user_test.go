package service

import (
	"context"
	"testing"

	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCreatesEmptyWallet(t *testing.T) {
	f := newFixture(t)
	user, wallet, err := f.users.Register(context.Background(), RegisterInput{
		Username:      "dana",
		Email:         "dana@example.com",
		WalletAddress: "0xABCdef",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Equal(t, "Rookie", user.Rank)
	require.NotNil(t, user.WalletAddress)
	assert.Equal(t, "0xabcdef", *user.WalletAddress)
	assert.Equal(t, user.ID, wallet.UserID)
	assert.Equal(t, int64(0), f.balance(t, user.ID))
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.users.Register(ctx, RegisterInput{Username: "erin"})
	require.NoError(t, err)

	_, _, err = f.users.Register(ctx, RegisterInput{Username: "erin"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, _, err = f.users.Register(ctx, RegisterInput{Username: "frank", Role: "root"})
	assert.ErrorIs(t, err, ErrInvalidUser)

	_, _, err = f.users.Register(ctx, RegisterInput{Username: "  "})
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func TestGetUserNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.GetUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLeaderboardOrdersByRankPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := seedSixHundredFourHundred(t, f)
	carol := f.newUser(t, "carol", 50*unit)
	_, _, err := f.users.Register(ctx, RegisterInput{Username: "root", Role: domain.RoleAdmin})
	require.NoError(t, err)

	marketID := f.activeMarket(t, 0)
	f.placeBet(t, carol, marketID, domain.OutcomeA, 50*unit)

	_, err = f.settle.SettleMarket(ctx, s.marketID, domain.OutcomeA, &f.admin)
	require.NoError(t, err)

	board, err := f.users.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board, 3, "admins are not ranked")
	assert.Equal(t, s.alice, board[0].ID)
	assert.Equal(t, s.bob, board[1].ID)
	assert.Equal(t, carol, board[2].ID)

	top, err := f.users.Leaderboard(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}
