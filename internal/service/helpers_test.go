package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/ayo6706/parimutuel-markets/internal/events"
	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/ayo6706/parimutuel-markets/internal/testutil/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const unit = domain.MicrosPerUnit

var fixedNow = time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store     *memstore.Store
	publisher *recordingPublisher
	settle    *SettlementService
	betting   *BettingService
	markets   *MarketService
	users     *UserService
	wallets   *WalletService
	admin     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	store.Now = func() time.Time { return fixedNow }
	pub := &recordingPublisher{}
	ranks := domain.DefaultRankPolicy()

	f := &fixture{
		store:     store,
		publisher: pub,
		settle:    NewSettlementService(store, pub, ranks, 5*time.Second),
		betting:   NewBettingService(store, pub, ranks),
		markets:   NewMarketService(store),
		users:     NewUserService(store, ranks),
		wallets:   NewWalletService(store),
		admin:     uuid.New(),
	}
	f.settle.now = func() time.Time { return fixedNow }
	f.betting.now = func() time.Time { return fixedNow }
	return f
}

// newUser registers a user and funds the wallet with balance micros.
func (f *fixture) newUser(t *testing.T, name string, balance int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	user, _, err := f.users.Register(ctx, RegisterInput{Username: name, Email: name + "@example.com"})
	require.NoError(t, err)
	if balance > 0 {
		_, err = f.wallets.Deposit(ctx, user.ID, balance, "seed-"+name, &f.admin)
		require.NoError(t, err)
	}
	return user.ID
}

// activeMarket creates a market and opens it for betting.
func (f *fixture) activeMarket(t *testing.T, bonus int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	m, err := f.markets.CreateMarket(ctx, CreateMarketInput{Title: "Will it rain tomorrow?", BonusPool: bonus}, &f.admin)
	require.NoError(t, err)
	_, err = f.markets.TransitionStatus(ctx, m.ID, domain.MarketStatusActive, &f.admin)
	require.NoError(t, err)
	return m.ID
}

func (f *fixture) placeBet(t *testing.T, userID, marketID uuid.UUID, outcome string, amount int64) uuid.UUID {
	t.Helper()
	res, err := f.betting.PlaceBet(context.Background(), userID, marketID, outcome, amount)
	require.NoError(t, err)
	return res.Bet.ID
}

func (f *fixture) balance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	w, err := f.wallets.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

func (f *fixture) market(t *testing.T, id uuid.UUID) *models.Market {
	t.Helper()
	m, err := f.markets.GetMarket(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (f *fixture) bets(t *testing.T, marketID uuid.UUID) map[uuid.UUID]models.Bet {
	t.Helper()
	list, err := f.markets.ListBets(context.Background(), marketID)
	require.NoError(t, err)
	out := make(map[uuid.UUID]models.Bet, len(list))
	for _, b := range list {
		out[b.ID] = b
	}
	return out
}

// snapshot captures everything settlement may write.
type snapshot struct {
	market   models.Market
	bets     map[uuid.UUID]models.Bet
	balances map[uuid.UUID]int64
	txCount  int
}

func (f *fixture) snapshot(t *testing.T, marketID uuid.UUID, users ...uuid.UUID) snapshot {
	t.Helper()
	s := snapshot{
		market:   *f.market(t, marketID),
		bets:     f.bets(t, marketID),
		balances: map[uuid.UUID]int64{},
		txCount:  len(f.store.Transactions()),
	}
	for _, u := range users {
		s.balances[u] = f.balance(t, u)
	}
	return s
}
