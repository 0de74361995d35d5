package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/ayo6706/parimutuel-markets/internal/events"
	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seededMarket struct {
	marketID uuid.UUID
	alice    uuid.UUID
	bob      uuid.UUID
	aliceBet uuid.UUID
	bobBet   uuid.UUID
}

// seedSixHundredFourHundred stores a market with poolA=600, poolB=400 and
// two 300 bets on A. The B pool has no bets behind it.
func seedSixHundredFourHundred(t *testing.T, f *fixture) seededMarket {
	t.Helper()
	s := seededMarket{
		marketID: uuid.New(),
		alice:    f.newUser(t, "alice", 0),
		bob:      f.newUser(t, "bob", 0),
		aliceBet: uuid.New(),
		bobBet:   uuid.New(),
	}
	f.store.PutMarket(models.Market{
		ID:            s.marketID,
		Title:         "Scenario market",
		OutcomeALabel: "Yes",
		OutcomeBLabel: "No",
		PoolA:         600 * unit,
		PoolB:         400 * unit,
		Status:        domain.MarketStatusActive,
	})
	f.store.PutBet(models.Bet{ID: s.aliceBet, MarketID: s.marketID, UserID: s.alice, Outcome: domain.OutcomeA, Amount: 300 * unit, Status: domain.BetStatusActive})
	f.store.PutBet(models.Bet{ID: s.bobBet, MarketID: s.marketID, UserID: s.bob, Outcome: domain.OutcomeA, Amount: 300 * unit, Status: domain.BetStatusActive})
	return s
}

func TestSettleMarketSplitsPoolProportionally(t *testing.T) {
	f := newFixture(t)
	s := seedSixHundredFourHundred(t, f)

	res, err := f.settle.SettleMarket(context.Background(), s.marketID, domain.OutcomeA, &f.admin)
	require.NoError(t, err)

	assert.Equal(t, int64(1000*unit), res.TotalPool)
	assert.Equal(t, int64(600*unit), res.WinningPool)
	assert.Equal(t, int64(1000*unit), res.TotalPaid)
	assert.Equal(t, int64(0), res.Remainder)
	assert.Equal(t, 2, res.PayoutsProcessed)
	assert.Equal(t, domain.MarketStatusSettled, res.Market.Status)
	require.NotNil(t, res.Market.WinningOutcome)
	assert.Equal(t, domain.OutcomeA, *res.Market.WinningOutcome)

	bets := f.bets(t, s.marketID)
	for _, id := range []uuid.UUID{s.aliceBet, s.bobBet} {
		b := bets[id]
		assert.Equal(t, domain.BetStatusWon, b.Status)
		require.NotNil(t, b.ActualPayout)
		assert.Equal(t, int64(500*unit), *b.ActualPayout)
		require.NotNil(t, b.SettledAt)
		assert.Equal(t, fixedNow, *b.SettledAt)
	}
	assert.Equal(t, int64(500*unit), f.balance(t, s.alice))
	assert.Equal(t, int64(500*unit), f.balance(t, s.bob))

	m := f.market(t, s.marketID)
	assert.Equal(t, domain.MarketStatusSettled, m.Status)
	require.NotNil(t, m.SettledAt)
	assert.Equal(t, fixedNow, *m.SettledAt)
}

func TestSettleMarketRecordsLedgerStatsAndAudit(t *testing.T) {
	f := newFixture(t)
	s := seedSixHundredFourHundred(t, f)

	_, err := f.settle.SettleMarket(context.Background(), s.marketID, "a", &f.admin)
	require.NoError(t, err)

	var won []models.Transaction
	for _, tx := range f.store.Transactions() {
		if tx.Type == domain.TxTypeBetWon {
			won = append(won, tx)
		}
	}
	require.Len(t, won, 2)
	for _, tx := range won {
		assert.Equal(t, int64(500*unit), tx.Amount)
		var meta map[string]string
		require.NoError(t, json.Unmarshal(tx.Metadata, &meta))
		assert.Equal(t, s.marketID.String(), meta["market_id"])
		assert.Contains(t, []string{s.aliceBet.String(), s.bobBet.String()}, meta["bet_id"])
	}

	alice, err := f.users.GetUser(context.Background(), s.alice)
	require.NoError(t, err)
	assert.Equal(t, int64(500*unit), alice.TotalWon)
	assert.Equal(t, int64(2500), alice.RankPoints)
	assert.Equal(t, "Platinum", alice.Rank)

	history, err := f.markets.History(context.Background(), s.marketID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, "settled", last.Action)
	require.NotNil(t, last.NextState)
	assert.Equal(t, domain.MarketStatusSettled, *last.NextState)
	require.NotNil(t, last.ActorID)
	assert.Equal(t, f.admin, *last.ActorID)
}

func TestSettleMarketWithoutWinningBetsIsRejected(t *testing.T) {
	f := newFixture(t)
	s := seedSixHundredFourHundred(t, f)
	before := f.snapshot(t, s.marketID, s.alice, s.bob)

	_, err := f.settle.SettleMarket(context.Background(), s.marketID, domain.OutcomeB, &f.admin)
	assert.ErrorIs(t, err, ErrNoWinningStake)
	assert.False(t, errors.Is(err, ErrStorageFailure))

	after := f.snapshot(t, s.marketID, s.alice, s.bob)
	assert.Equal(t, before, after)
	assert.Equal(t, domain.MarketStatusActive, after.market.Status)
	assert.Empty(t, f.publisher.types())
}

func TestSettleMarketEmptyWinningPool(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice", 100*unit)
	marketID := f.activeMarket(t, 0)
	f.placeBet(t, alice, marketID, domain.OutcomeA, 50*unit)

	_, err := f.settle.SettleMarket(context.Background(), marketID, domain.OutcomeB, &f.admin)
	assert.ErrorIs(t, err, ErrNoWinningStake)
	assert.Equal(t, domain.MarketStatusActive, f.market(t, marketID).Status)
}

func TestSettleMarketTwiceKeepsFirstResult(t *testing.T) {
	f := newFixture(t)
	s := seedSixHundredFourHundred(t, f)
	ctx := context.Background()

	_, err := f.settle.SettleMarket(ctx, s.marketID, domain.OutcomeA, &f.admin)
	require.NoError(t, err)
	before := f.snapshot(t, s.marketID, s.alice, s.bob)

	_, err = f.settle.SettleMarket(ctx, s.marketID, domain.OutcomeB, &f.admin)
	assert.ErrorIs(t, err, ErrMarketAlreadySettled)

	after := f.snapshot(t, s.marketID, s.alice, s.bob)
	assert.Equal(t, before, after)
	require.NotNil(t, after.market.WinningOutcome)
	assert.Equal(t, domain.OutcomeA, *after.market.WinningOutcome)
}

func TestSettleMarketConcurrentCallsPayOnce(t *testing.T) {
	f := newFixture(t)
	s := seedSixHundredFourHundred(t, f)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		settled   int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.settle.SettleMarket(context.Background(), s.marketID, domain.OutcomeA, &f.admin)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrMarketAlreadySettled):
				settled++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, settled)
	assert.Equal(t, int64(500*unit), f.balance(t, s.alice))
	assert.Equal(t, int64(500*unit), f.balance(t, s.bob))
	assert.Equal(t, []string{events.TypeMarketSettled}, f.publisher.types())
}

func TestSettleMarketRejectsInvalidOutcomeBeforeStorage(t *testing.T) {
	f := newFixture(t)
	s := seedSixHundredFourHundred(t, f)
	f.store.FailOn("GetMarketForUpdate", errors.New("must not be reached"))

	for _, outcome := range []string{"", "C", "draw", "AB"} {
		_, err := f.settle.SettleMarket(context.Background(), s.marketID, outcome, &f.admin)
		assert.ErrorIs(t, err, ErrInvalidOutcome, outcome)
	}
}

func TestSettleMarketNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.settle.SettleMarket(context.Background(), uuid.New(), domain.OutcomeA, &f.admin)
	assert.ErrorIs(t, err, ErrMarketNotFound)
	assert.Empty(t, f.store.Transactions())
}

func TestSettleMarketWithBonusAndLosers(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice", 1000*unit)
	bob := f.newUser(t, "bob", 1000*unit)
	carol := f.newUser(t, "carol", 1000*unit)
	marketID := f.activeMarket(t, 100*unit)

	aliceBet := f.placeBet(t, alice, marketID, domain.OutcomeA, 100*unit)
	bobBet := f.placeBet(t, bob, marketID, domain.OutcomeA, 200*unit)
	carolBet := f.placeBet(t, carol, marketID, domain.OutcomeB, 300*unit)

	res, err := f.settle.SettleMarket(context.Background(), marketID, domain.OutcomeA, &f.admin)
	require.NoError(t, err)

	// total 700, winning 300
	assert.Equal(t, int64(700*unit), res.TotalPool)
	assert.Equal(t, int64(300*unit), res.WinningPool)

	bets := f.bets(t, marketID)
	assert.Equal(t, int64(233_333_333), *bets[aliceBet].ActualPayout)
	assert.Equal(t, int64(466_666_666), *bets[bobBet].ActualPayout)
	assert.Equal(t, domain.BetStatusLost, bets[carolBet].Status)
	assert.Equal(t, int64(0), *bets[carolBet].ActualPayout)

	assert.Equal(t, int64(1), res.Remainder)
	assert.Equal(t, res.TotalPool, res.TotalPaid+res.Remainder)

	assert.Equal(t, int64(900*unit+233_333_333), f.balance(t, alice))
	assert.Equal(t, int64(800*unit+466_666_666), f.balance(t, bob))
	assert.Equal(t, int64(700*unit), f.balance(t, carol))

	for _, b := range bets {
		assert.NotEqual(t, domain.BetStatusActive, b.Status)
	}
}

func TestSettleMarketCreditsEachBetOfRepeatBettor(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice", 1000*unit)
	bob := f.newUser(t, "bob", 1000*unit)
	marketID := f.activeMarket(t, 0)

	f.placeBet(t, alice, marketID, domain.OutcomeB, 10*unit)
	f.placeBet(t, alice, marketID, domain.OutcomeB, 30*unit)
	f.placeBet(t, bob, marketID, domain.OutcomeA, 60*unit)

	res, err := f.settle.SettleMarket(context.Background(), marketID, domain.OutcomeB, &f.admin)
	require.NoError(t, err)
	assert.Equal(t, 2, res.PayoutsProcessed)
	assert.Equal(t, int64(100*unit), res.TotalPaid)
	assert.Equal(t, int64(960*unit+100*unit), f.balance(t, alice))

	user, err := f.users.GetUser(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, int64(40*unit), user.TotalWagered)
	assert.Equal(t, int64(100*unit), user.TotalWon)
}

func TestSettleMarketRefusesToOverpay(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice", 0)
	marketID := uuid.New()
	f.store.PutMarket(models.Market{ID: marketID, Title: "broken", PoolA: 100 * unit, PoolB: 100 * unit, Status: domain.MarketStatusLocked})
	f.store.PutBet(models.Bet{ID: uuid.New(), MarketID: marketID, UserID: alice, Outcome: domain.OutcomeA, Amount: 300 * unit, Status: domain.BetStatusActive})

	_, err := f.settle.SettleMarket(context.Background(), marketID, domain.OutcomeA, &f.admin)
	assert.ErrorIs(t, err, ErrPoolInconsistent)
	assert.Equal(t, domain.MarketStatusLocked, f.market(t, marketID).Status)
	assert.Equal(t, int64(0), f.balance(t, alice))
}

func TestSettleMarketRejectsOverflowingBonus(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice", 0)
	marketID := uuid.New()
	f.store.PutMarket(models.Market{ID: marketID, Title: "huge bonus", PoolA: unit, PoolB: unit, BonusPool: math.MaxInt64 - unit, Status: domain.MarketStatusLocked})
	f.store.PutBet(models.Bet{ID: uuid.New(), MarketID: marketID, UserID: alice, Outcome: domain.OutcomeA, Amount: unit, Status: domain.BetStatusActive})

	_, err := f.settle.SettleMarket(context.Background(), marketID, domain.OutcomeA, &f.admin)
	assert.ErrorIs(t, err, ErrPoolInconsistent)
	assert.Equal(t, domain.MarketStatusLocked, f.market(t, marketID).Status)
	assert.Equal(t, int64(0), f.balance(t, alice))
}

func TestSettleMarketStorageFailureRollsBackAndIsRetryable(t *testing.T) {
	f := newFixture(t)
	s := seedSixHundredFourHundred(t, f)
	before := f.snapshot(t, s.marketID, s.alice, s.bob)

	f.store.FailOn("UpdateUserStats", errors.New("connection reset by peer"))
	_, err := f.settle.SettleMarket(context.Background(), s.marketID, domain.OutcomeA, &f.admin)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageFailure)
	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Retryable())

	assert.Equal(t, before, f.snapshot(t, s.marketID, s.alice, s.bob))

	f.store.FailOn("UpdateUserStats", nil)
	_, err = f.settle.SettleMarket(context.Background(), s.marketID, domain.OutcomeA, &f.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(500*unit), f.balance(t, s.alice))
}

func TestSettleMarketCommitFailureIsStorageFailure(t *testing.T) {
	f := newFixture(t)
	s := seedSixHundredFourHundred(t, f)

	f.store.FailOn("Commit", errors.New("could not serialize access"))
	_, err := f.settle.SettleMarket(context.Background(), s.marketID, domain.OutcomeA, &f.admin)
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.Equal(t, domain.MarketStatusActive, f.market(t, s.marketID).Status)
	assert.Empty(t, f.publisher.types())
}

func TestSettleMarketIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	s := seedSixHundredFourHundred(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.settle.SettleMarket(ctx, s.marketID, domain.OutcomeA, &f.admin)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusSettled, f.market(t, s.marketID).Status)
}

func TestSettleMarketPublishesAfterCommit(t *testing.T) {
	f := newFixture(t)
	s := seedSixHundredFourHundred(t, f)

	_, err := f.settle.SettleMarket(context.Background(), s.marketID, domain.OutcomeA, &f.admin)
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 1)
	e := f.publisher.events[0]
	assert.Equal(t, events.TypeMarketSettled, e.Type)
	assert.Equal(t, s.marketID, e.MarketID)

	var payload events.MarketSettled
	require.NoError(t, json.Unmarshal(e.Data, &payload))
	assert.Equal(t, int64(1000*unit), payload.TotalPaid)
	assert.Equal(t, 2, payload.PayoutsProcessed)
}

func TestSettleMarketSucceedsWhenPublishFails(t *testing.T) {
	f := newFixture(t)
	s := seedSixHundredFourHundred(t, f)
	f.publisher.err = errors.New("broker unavailable")

	res, err := f.settle.SettleMarket(context.Background(), s.marketID, domain.OutcomeA, &f.admin)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusSettled, res.Market.Status)
}

func TestSettleMarketConservationAcrossManyBets(t *testing.T) {
	f := newFixture(t)
	marketID := f.activeMarket(t, 7)
	stakes := []int64{1, 3, 7, 11, 13, 999_999, 1_000_001, 123_456_789}
	for i, stake := range stakes {
		u := f.newUser(t, "user"+string(rune('a'+i)), 1_000*unit)
		outcome := domain.OutcomeA
		if i%3 == 0 {
			outcome = domain.OutcomeB
		}
		f.placeBet(t, u, marketID, outcome, stake)
	}

	res, err := f.settle.SettleMarket(context.Background(), marketID, domain.OutcomeA, &f.admin)
	require.NoError(t, err)

	var paid int64
	for _, p := range res.Payouts {
		paid += p.Amount
		assert.GreaterOrEqual(t, p.Amount, p.Stake)
	}
	assert.Equal(t, res.TotalPaid, paid)
	assert.LessOrEqual(t, paid, res.TotalPool)
	assert.GreaterOrEqual(t, res.Remainder, int64(0))
	assert.Less(t, res.Remainder, int64(len(res.Payouts)))
}
