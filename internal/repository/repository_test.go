package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ayo6706/parimutuel-markets/internal/db"
	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/ayo6706/parimutuel-markets/internal/testutil/dblock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = godotenv.Load("../../.env")
}

func openStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	release := dblock.Acquire()
	t.Cleanup(release)

	ctx := context.Background()
	pool, err := db.Connect(ctx, os.Getenv("DATABASE_URL"))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))
	return NewStore(pool)
}

func seedUserWithWallet(t *testing.T, q Querier, balance int64) (*models.User, *models.Wallet) {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	user := &models.User{
		ID:       id,
		Username: "repo_" + id.String()[:8],
		Email:    "repo_" + id.String()[:8] + "@example.com",
		Role:     domain.RoleUser,
		Rank:     "Rookie",
	}
	require.NoError(t, q.CreateUser(ctx, user))
	wallet := &models.Wallet{ID: uuid.New(), UserID: id, Balance: balance}
	require.NoError(t, q.CreateWallet(ctx, wallet))
	return user, wallet
}

func TestCreateUserAndWallet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	q := store.Queries()

	user, wallet := seedUserWithWallet(t, q, 0)

	got, err := q.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, got.Username)
	assert.Equal(t, int64(0), got.RankPoints)

	w, err := q.GetWalletByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, w.ID)
	assert.Equal(t, int64(0), w.Balance)

	_, err = q.GetUser(ctx, uuid.New())
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
}

func TestDebitWalletRefusesOverdraft(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	q := store.Queries()

	_, wallet := seedUserWithWallet(t, q, 0)

	balance, err := q.CreditWallet(ctx, wallet.ID, 5_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), balance)

	_, err = q.DebitWallet(ctx, wallet.ID, 6_000_000)
	assert.True(t, errors.Is(err, pgx.ErrNoRows))

	balance, err = q.DebitWallet(ctx, wallet.ID, 2_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(3_000_000), balance)
}

func TestMarketSettlementQueries(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	market := &models.Market{
		ID:            uuid.New(),
		Title:         "repo test market",
		OutcomeALabel: "Yes",
		OutcomeBLabel: "No",
		Status:        domain.MarketStatusActive,
	}
	user, _ := seedUserWithWallet(t, store.Queries(), 0)

	now := time.Now().UTC().Truncate(time.Microsecond)
	err := store.RunInTx(ctx, func(q Querier) error {
		if err := q.CreateMarket(ctx, market); err != nil {
			return err
		}
		bet := &models.Bet{
			ID:       uuid.New(),
			MarketID: market.ID,
			UserID:   user.ID,
			Outcome:  domain.OutcomeA,
			Amount:   1_000_000,
			Status:   domain.BetStatusActive,
		}
		if err := q.CreateBet(ctx, bet); err != nil {
			return err
		}
		if _, err := q.AddToPool(ctx, AddToPoolParams{ID: market.ID, Outcome: domain.OutcomeA, Amount: bet.Amount}); err != nil {
			return err
		}

		locked, err := q.GetMarketForUpdate(ctx, market.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1_000_000), locked.PoolA)

		bets, err := q.ListBetsByMarketForUpdate(ctx, market.ID)
		if err != nil {
			return err
		}
		require.Len(t, bets, 1)

		n, err := q.UpdateBetSettlement(ctx, UpdateBetSettlementParams{
			ID: bet.ID, Status: domain.BetStatusWon, ActualPayout: 1_000_000, SettledAt: now,
		})
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), n)

		n, err = q.MarkMarketSettled(ctx, MarkMarketSettledParams{ID: market.ID, WinningOutcome: domain.OutcomeA, SettledAt: now})
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), n)
		return nil
	})
	require.NoError(t, err)

	got, err := store.Queries().GetMarket(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusSettled, got.Status)
	require.NotNil(t, got.WinningOutcome)
	assert.Equal(t, domain.OutcomeA, *got.WinningOutcome)

	n, err := store.Queries().MarkMarketSettled(ctx, MarkMarketSettledParams{ID: market.ID, WinningOutcome: domain.OutcomeB, SettledAt: now})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "settled market must not be settled twice")

	stale, err := store.Queries().ListSettledMarketsWithActiveBets(ctx)
	require.NoError(t, err)
	assert.NotContains(t, stale, market.ID)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	_, wallet := seedUserWithWallet(t, store.Queries(), 1_000_000)

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(q Querier) error {
		if _, err := q.CreditWallet(ctx, wallet.ID, 9_000_000); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	w, err := store.Queries().GetWalletByUser(ctx, wallet.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), w.Balance)
}

func TestIdempotencyKeyLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	q := store.Queries()
	key := "repo-" + uuid.NewString()

	row, err := q.ReserveIdempotencyKey(ctx, ReserveIdempotencyKeyParams{
		IdempotencyKey: key, RequestHash: "h1", Method: "POST", Path: "/v1/markets",
	})
	require.NoError(t, err)
	assert.True(t, row.InProgress)

	_, err = q.ReserveIdempotencyKey(ctx, ReserveIdempotencyKeyParams{
		IdempotencyKey: key, RequestHash: "h1", Method: "POST", Path: "/v1/markets",
	})
	assert.True(t, errors.Is(err, pgx.ErrNoRows))

	row, err = q.FinalizeIdempotencyKey(ctx, FinalizeIdempotencyKeyParams{
		ResponseStatus: 201, ResponseBody: []byte(`{}`), ContentType: "application/json",
		IdempotencyKey: key, RequestHash: "h1",
	})
	require.NoError(t, err)
	assert.False(t, row.InProgress)
	assert.Equal(t, int32(201), row.ResponseStatus)

	n, err := q.DeleteInProgressIdempotencyKey(ctx, key, "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "finalized keys are kept")
}

func TestDeleteInProgressIdempotencyKey(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	q := store.Queries()
	key := "repo-" + uuid.NewString()

	_, err := q.ReserveIdempotencyKey(ctx, ReserveIdempotencyKeyParams{
		IdempotencyKey: key, RequestHash: "h1", Method: "POST", Path: "/v1/markets",
	})
	require.NoError(t, err)

	n, err := q.DeleteInProgressIdempotencyKey(ctx, key, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = q.DeleteInProgressIdempotencyKey(ctx, key, "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = q.GetIdempotencyKey(ctx, key)
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
}
