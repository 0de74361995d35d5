package service

import (
	"context"
	"testing"

	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{domain.MarketStatusPending, domain.MarketStatusActive, true},
		{domain.MarketStatusPending, domain.MarketStatusLocked, true},
		{domain.MarketStatusActive, domain.MarketStatusLocked, true},
		{domain.MarketStatusLocked, domain.MarketStatusActive, true},
		{"LOCKED", " active ", true},
		{domain.MarketStatusActive, domain.MarketStatusPending, false},
		{domain.MarketStatusActive, domain.MarketStatusSettled, false},
		{domain.MarketStatusLocked, domain.MarketStatusSettled, false},
		{domain.MarketStatusPending, domain.MarketStatusVoided, false},
		{domain.MarketStatusSettled, domain.MarketStatusActive, false},
		{"bogus", domain.MarketStatusActive, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, canTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCreateMarketDefaults(t *testing.T) {
	f := newFixture(t)
	m, err := f.markets.CreateMarket(context.Background(), CreateMarketInput{Title: "  Finals winner  ", BonusPool: 5 * unit}, &f.admin)
	require.NoError(t, err)

	assert.Equal(t, "Finals winner", m.Title)
	assert.Equal(t, "Yes", m.OutcomeALabel)
	assert.Equal(t, "No", m.OutcomeBLabel)
	assert.Equal(t, domain.MarketStatusPending, m.Status)
	assert.Equal(t, int64(5*unit), m.BonusPool)

	history, err := f.markets.History(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "created", history[0].Action)
}

func TestCreateMarketValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.markets.CreateMarket(context.Background(), CreateMarketInput{Title: "   "}, nil)
	assert.ErrorIs(t, err, ErrInvalidMarket)

	_, err = f.markets.CreateMarket(context.Background(), CreateMarketInput{Title: "x", BonusPool: -1}, nil)
	assert.ErrorIs(t, err, ErrInvalidMarket)
}

func TestTransitionStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, err := f.markets.CreateMarket(ctx, CreateMarketInput{Title: "Lifecycle"}, &f.admin)
	require.NoError(t, err)

	got, err := f.markets.TransitionStatus(ctx, m.ID, "ACTIVE", &f.admin)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusActive, got.Status)

	got, err = f.markets.TransitionStatus(ctx, m.ID, domain.MarketStatusActive, &f.admin)
	require.NoError(t, err, "same status is a no-op")
	assert.Equal(t, domain.MarketStatusActive, got.Status)

	_, err = f.markets.TransitionStatus(ctx, m.ID, domain.MarketStatusPending, &f.admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.markets.TransitionStatus(ctx, m.ID, domain.MarketStatusSettled, &f.admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.markets.TransitionStatus(ctx, uuid.New(), domain.MarketStatusActive, &f.admin)
	assert.ErrorIs(t, err, ErrMarketNotFound)

	history, err := f.markets.History(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "status_changed", history[1].Action)
	assert.Equal(t, domain.MarketStatusPending, *history[1].PrevState)
	assert.Equal(t, domain.MarketStatusActive, *history[1].NextState)
}

func TestTransitionStatusAfterSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := seedSixHundredFourHundred(t, f)
	_, err := f.settle.SettleMarket(ctx, s.marketID, domain.OutcomeA, &f.admin)
	require.NoError(t, err)

	_, err = f.markets.TransitionStatus(ctx, s.marketID, domain.MarketStatusActive, &f.admin)
	assert.ErrorIs(t, err, ErrMarketAlreadySettled)
}

func TestListMarketsFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	active := f.activeMarket(t, 0)
	pending, err := f.markets.CreateMarket(ctx, CreateMarketInput{Title: "Later"}, &f.admin)
	require.NoError(t, err)

	all, err := f.markets.ListMarkets(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, pending.ID, all[0].ID, "newest first")

	onlyActive, err := f.markets.ListMarkets(ctx, "active", 10, 0)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, active, onlyActive[0].ID)

	_, err = f.markets.ListMarkets(ctx, "archived", 10, 0)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestListBetsUnknownMarket(t *testing.T) {
	f := newFixture(t)
	_, err := f.markets.ListBets(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrMarketNotFound)
}
