package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/ayo6706/parimutuel-markets/internal/events"
	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/ayo6706/parimutuel-markets/internal/observability"
	"github.com/ayo6706/parimutuel-markets/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const defaultSettlementTimeout = 30 * time.Second

// Payout is the settlement of one winning bet.
type Payout struct {
	BetID  uuid.UUID `json:"bet_id"`
	UserID uuid.UUID `json:"user_id"`
	Stake  int64     `json:"stake_micros"`
	Amount int64     `json:"payout_micros"`
}

// SettlementResult summarises a committed settlement. Remainder is the part
// of TotalPool that per-bet truncation left unpaid.
type SettlementResult struct {
	Market           *models.Market `json:"market"`
	PayoutsProcessed int            `json:"payouts_processed"`
	TotalPool        int64          `json:"total_pool_micros"`
	WinningPool      int64          `json:"winning_pool_micros"`
	TotalPaid        int64          `json:"total_paid_micros"`
	Remainder        int64          `json:"remainder_micros"`
	Payouts          []Payout       `json:"payouts"`
}

// SettlementService resolves a market and pays its winners in one
// transaction.
type SettlementService struct {
	store     QueryStore
	audit     *AuditService
	publisher events.Publisher
	ranks     *domain.RankPolicy
	txTimeout time.Duration
	now       func() time.Time
}

func NewSettlementService(store QueryStore, publisher events.Publisher, ranks *domain.RankPolicy, txTimeout time.Duration) *SettlementService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if ranks == nil {
		ranks = domain.DefaultRankPolicy()
	}
	if txTimeout <= 0 {
		txTimeout = defaultSettlementTimeout
	}
	return &SettlementService{
		store:     store,
		audit:     NewAuditService(store),
		publisher: publisher,
		ranks:     ranks,
		txTimeout: txTimeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SettleMarket declares winningOutcome ("A" or "B", any case) the result of
// the market and distributes the total pool among the winning bets. Either
// every effect is committed or none is. Once started, the transaction is
// not cancelled by ctx; it is bounded by the service's own timeout.
func (s *SettlementService) SettleMarket(ctx context.Context, marketID uuid.UUID, winningOutcome string, actorID *uuid.UUID) (*SettlementResult, error) {
	start := time.Now()
	outcome, ok := domain.NormalizeOutcome(winningOutcome)
	if !ok {
		observability.ObserveSettlement("invalid_outcome", 0, time.Since(start))
		return nil, fmt.Errorf("%w: got %q", ErrInvalidOutcome, winningOutcome)
	}

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.txTimeout)
	defer cancel()

	var result *SettlementResult
	err := s.store.RunInTx(txCtx, func(q repository.Querier) error {
		r, err := s.settle(txCtx, q, marketID, outcome, actorID)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		err = classify("settle market", err)
		observability.ObserveSettlement(settlementResultLabel(err), 0, time.Since(start))
		fields := []zap.Field{
			zap.String("market_id", marketID.String()),
			zap.String("winning_outcome", outcome),
			zap.Error(err),
		}
		if errors.Is(err, ErrStorageFailure) {
			zap.L().Error("settlement failed", fields...)
		} else {
			zap.L().Warn("settlement rejected", fields...)
		}
		return nil, err
	}

	observability.ObserveSettlement("settled", result.PayoutsProcessed, time.Since(start))
	zap.L().Info("market settled",
		zap.String("market_id", marketID.String()),
		zap.String("winning_outcome", outcome),
		zap.Int("payouts", result.PayoutsProcessed),
		zap.Int64("total_pool", result.TotalPool),
		zap.Int64("total_paid", result.TotalPaid),
		zap.Int64("remainder", result.Remainder))

	event, err := events.NewMarketSettled(events.MarketSettled{
		MarketID:         marketID,
		WinningOutcome:   outcome,
		TotalPool:        result.TotalPool,
		WinningPool:      result.WinningPool,
		TotalPaid:        result.TotalPaid,
		Remainder:        result.Remainder,
		PayoutsProcessed: result.PayoutsProcessed,
		SettledAt:        *result.Market.SettledAt,
	})
	if err != nil {
		zap.L().Warn("build settlement event", zap.Error(err))
		return result, nil
	}
	publish(ctx, s.publisher, event)
	return result, nil
}

func (s *SettlementService) settle(ctx context.Context, q repository.Querier, marketID uuid.UUID, outcome string, actorID *uuid.UUID) (*SettlementResult, error) {
	market, err := q.GetMarketForUpdate(ctx, marketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMarketNotFound
		}
		return nil, storageError("lock market", err)
	}
	if market.Status == domain.MarketStatusSettled {
		return nil, ErrMarketAlreadySettled
	}

	pools := domain.Pools{A: market.PoolA, B: market.PoolB, Bonus: market.BonusPool}
	if pools.Side(outcome) == 0 {
		return nil, ErrNoWinningStake
	}

	bets, err := q.ListBetsByMarketForUpdate(ctx, marketID)
	if err != nil {
		return nil, storageError("lock bets", err)
	}

	var winners []models.Bet
	for _, b := range bets {
		if b.Status == domain.BetStatusActive && b.Outcome == outcome {
			winners = append(winners, b)
		}
	}
	if len(winners) == 0 {
		return nil, ErrNoWinningStake
	}

	stakes := make([]int64, len(winners))
	for i, b := range winners {
		stakes[i] = b.Amount
	}
	dist, err := domain.Distribute(pools, outcome, stakes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPoolInconsistent, err)
	}
	payoutByBet := make(map[uuid.UUID]int64, len(winners))
	for i, b := range winners {
		payoutByBet[b.ID] = dist.Payouts[i]
	}

	settledAt := s.now()
	rows, err := q.MarkMarketSettled(ctx, repository.MarkMarketSettledParams{
		ID:             marketID,
		WinningOutcome: outcome,
		SettledAt:      settledAt,
	})
	if err != nil {
		return nil, storageError("mark market settled", err)
	}
	if rows != 1 {
		return nil, ErrMarketAlreadySettled
	}

	for _, b := range bets {
		if b.Status != domain.BetStatusActive {
			continue
		}
		status, payout := domain.BetStatusLost, int64(0)
		if p, won := payoutByBet[b.ID]; won {
			status, payout = domain.BetStatusWon, p
		}
		rows, err := q.UpdateBetSettlement(ctx, repository.UpdateBetSettlementParams{
			ID:           b.ID,
			Status:       status,
			ActualPayout: payout,
			SettledAt:    settledAt,
		})
		if err != nil {
			return nil, storageError("settle bet", err)
		}
		if err := requireExactlyOne(rows, "settle bet"); err != nil {
			return nil, storageError("settle bet", err)
		}
	}

	// Credit in (user_id, bet_id) order so concurrent settlements of
	// different markets lock wallet and user rows in the same order.
	sort.Slice(winners, func(i, j int) bool {
		a, b := winners[i], winners[j]
		if a.UserID != b.UserID {
			return a.UserID.String() < b.UserID.String()
		}
		return a.ID.String() < b.ID.String()
	})

	payouts := make([]Payout, 0, len(winners))
	for i := 0; i < len(winners); {
		j := i
		for j < len(winners) && winners[j].UserID == winners[i].UserID {
			j++
		}
		credited, err := s.creditUser(ctx, q, marketID, outcome, winners[i:j], payoutByBet)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, credited...)
		i = j
	}

	meta, _ := json.Marshal(map[string]any{
		"winning_outcome": outcome,
		"total_pool":      dist.TotalPool,
		"winning_pool":    dist.WinningPool,
		"total_paid":      dist.TotalPaid,
		"remainder":       dist.Remainder,
		"payouts":         len(payouts),
	})
	if err := s.audit.Write(ctx, q, domain.EntityMarket, marketID, actorID, "settled", market.Status, domain.MarketStatusSettled, meta); err != nil {
		return nil, storageError("audit settlement", err)
	}

	market.Status = domain.MarketStatusSettled
	market.WinningOutcome = &outcome
	market.SettledAt = &settledAt
	market.UpdatedAt = settledAt

	return &SettlementResult{
		Market:           market,
		PayoutsProcessed: len(payouts),
		TotalPool:        dist.TotalPool,
		WinningPool:      dist.WinningPool,
		TotalPaid:        dist.TotalPaid,
		Remainder:        dist.Remainder,
		Payouts:          payouts,
	}, nil
}

// creditUser pays one user's winning bets: wallet first, then the user row.
func (s *SettlementService) creditUser(ctx context.Context, q repository.Querier, marketID uuid.UUID, outcome string, bets []models.Bet, payoutByBet map[uuid.UUID]int64) ([]Payout, error) {
	userID := bets[0].UserID

	var won int64
	for _, b := range bets {
		won += payoutByBet[b.ID]
	}

	payouts := make([]Payout, 0, len(bets))
	if won > 0 {
		wallet, err := q.GetWalletByUserForUpdate(ctx, userID)
		if err != nil {
			return nil, storageError(fmt.Sprintf("lock wallet of user %s", userID), err)
		}
		for _, b := range bets {
			amount := payoutByBet[b.ID]
			if amount == 0 {
				continue
			}
			if _, err := q.CreditWallet(ctx, wallet.ID, amount); err != nil {
				return nil, storageError("credit wallet", err)
			}
			meta, _ := json.Marshal(map[string]string{
				"bet_id":    b.ID.String(),
				"market_id": marketID.String(),
				"outcome":   outcome,
			})
			if _, err := q.CreateTransaction(ctx, repository.CreateTransactionParams{
				ID:          uuid.New(),
				WalletID:    wallet.ID,
				Type:        domain.TxTypeBetWon,
				Amount:      amount,
				Status:      domain.TxStatusCompleted,
				ReferenceID: b.ID.String(),
				Metadata:    meta,
			}); err != nil {
				return nil, storageError("record payout transaction", err)
			}
		}

		user, err := q.GetUserForUpdate(ctx, userID)
		if err != nil {
			return nil, storageError(fmt.Sprintf("lock user %s", userID), err)
		}
		totalWon := user.TotalWon + won
		points, rank := s.ranks.Derive(user.TotalWagered, totalWon)
		rows, err := q.UpdateUserStats(ctx, repository.UpdateUserStatsParams{
			ID:           userID,
			TotalWagered: user.TotalWagered,
			TotalWon:     totalWon,
			RankPoints:   points,
			Rank:         rank,
		})
		if err != nil {
			return nil, storageError("update user stats", err)
		}
		if err := requireExactlyOne(rows, "update user stats"); err != nil {
			return nil, storageError("update user stats", err)
		}
	}

	for _, b := range bets {
		payouts = append(payouts, Payout{BetID: b.ID, UserID: userID, Stake: b.Amount, Amount: payoutByBet[b.ID]})
	}
	return payouts, nil
}

func settlementResultLabel(err error) string {
	switch {
	case errors.Is(err, ErrMarketNotFound):
		return "not_found"
	case errors.Is(err, ErrMarketAlreadySettled):
		return "already_settled"
	case errors.Is(err, ErrNoWinningStake):
		return "no_winning_stake"
	case errors.Is(err, ErrPoolInconsistent):
		return "pool_inconsistent"
	default:
		return "storage_error"
	}
}
