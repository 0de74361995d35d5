package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/parimutuel-markets/internal/db"
	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/ayo6706/parimutuel-markets/internal/repository"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = godotenv.Load("../../.env")
}

func setupPostgresStore(t *testing.T) *repository.Store {
	t.Helper()
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, connString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))
	return repository.NewStore(pool)
}

func TestSettleMarketPostgresRace(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()
	ranks := domain.DefaultRankPolicy()
	users := NewUserService(store, ranks)
	wallets := NewWalletService(store)
	markets := NewMarketService(store)
	betting := NewBettingService(store, nil, ranks)
	settle := NewSettlementService(store, nil, ranks, 10*time.Second)

	suffix := time.Now().Format("150405.000000")
	alice, _, err := users.Register(ctx, RegisterInput{Username: "pg-alice-" + suffix})
	require.NoError(t, err)
	bob, _, err := users.Register(ctx, RegisterInput{Username: "pg-bob-" + suffix})
	require.NoError(t, err)
	_, err = wallets.Deposit(ctx, alice.ID, 1000*unit, "", nil)
	require.NoError(t, err)
	_, err = wallets.Deposit(ctx, bob.ID, 1000*unit, "", nil)
	require.NoError(t, err)

	market, err := markets.CreateMarket(ctx, CreateMarketInput{Title: "pg race " + suffix}, nil)
	require.NoError(t, err)
	_, err = markets.TransitionStatus(ctx, market.ID, domain.MarketStatusActive, nil)
	require.NoError(t, err)

	_, err = betting.PlaceBet(ctx, alice.ID, market.ID, domain.OutcomeA, 600*unit)
	require.NoError(t, err)
	_, err = betting.PlaceBet(ctx, bob.ID, market.ID, domain.OutcomeB, 400*unit)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := settle.SettleMarket(ctx, market.ID, domain.OutcomeA, nil)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, ErrMarketAlreadySettled) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 3, rejected)

	w, err := wallets.GetWallet(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1400*unit), w.Balance)

	report, err := NewReconciliationService(store).Run(ctx)
	require.NoError(t, err)
	for _, o := range report.OverpaidMarkets {
		assert.NotEqual(t, market.ID, o.MarketID)
	}
}
