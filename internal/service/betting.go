package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

type BettingService struct {
	store     QueryStore
	publisher events.Publisher
	ranks     *domain.RankPolicy
	now       func() time.Time
}

func NewBettingService(store QueryStore, publisher events.Publisher, ranks *domain.RankPolicy) *BettingService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if ranks == nil {
		ranks = domain.DefaultRankPolicy()
	}
	return &BettingService{
		store:     store,
		publisher: publisher,
		ranks:     ranks,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type PlaceBetResult struct {
	Bet     *models.Bet `json:"bet"`
	Balance int64       `json:"balance_micros"`
	PoolA   int64       `json:"pool_a_micros"`
	PoolB   int64       `json:"pool_b_micros"`
}

// PlaceBet stakes amount on outcome of an active market. The wallet debit,
// the bet, the pool increment and the ledger record commit together.
func (s *BettingService) PlaceBet(ctx context.Context, userID, marketID uuid.UUID, outcome string, amount int64) (*PlaceBetResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	side, ok := domain.NormalizeOutcome(outcome)
	if !ok {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidOutcome, outcome)
	}

	var result *PlaceBetResult
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		market, err := q.GetMarketForUpdate(ctx, marketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrMarketNotFound
			}
			return err
		}
		if market.Status != domain.MarketStatusActive {
			return fmt.Errorf("%w: status is %s", ErrMarketNotActive, market.Status)
		}

		wallet, err := q.GetWalletByUserForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrWalletNotFound
			}
			return err
		}
		if wallet.Balance < amount {
			return models.ErrInsufficientFunds
		}
		balance, err := q.DebitWallet(ctx, wallet.ID, amount)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrInsufficientFunds
			}
			return err
		}

		bet := &models.Bet{
			ID:       uuid.New(),
			MarketID: marketID,
			UserID:   userID,
			Outcome:  side,
			Amount:   amount,
			Status:   domain.BetStatusActive,
		}
		if err := q.CreateBet(ctx, bet); err != nil {
			return err
		}
		rows, err := q.AddToPool(ctx, repository.AddToPoolParams{ID: marketID, Outcome: side, Amount: amount})
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "add to pool"); err != nil {
			return err
		}

		meta, _ := json.Marshal(map[string]string{
			"bet_id":    bet.ID.String(),
			"market_id": marketID.String(),
			"outcome":   side,
		})
		if _, err := q.CreateTransaction(ctx, repository.CreateTransactionParams{
			ID:          uuid.New(),
			WalletID:    wallet.ID,
			Type:        domain.TxTypeBetPlaced,
			Amount:      amount,
			Status:      domain.TxStatusCompleted,
			ReferenceID: bet.ID.String(),
			Metadata:    meta,
		}); err != nil {
			return err
		}

		user, err := q.GetUserForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		wagered := user.TotalWagered + amount
		points, rank := s.ranks.Derive(wagered, user.TotalWon)
		if _, err := q.UpdateUserStats(ctx, repository.UpdateUserStatsParams{
			ID:           userID,
			TotalWagered: wagered,
			TotalWon:     user.TotalWon,
			RankPoints:   points,
			Rank:         rank,
		}); err != nil {
			return err
		}

		poolA, poolB := market.PoolA, market.PoolB
		if side == domain.OutcomeA {
			poolA += amount
		} else {
			poolB += amount
		}
		result = &PlaceBetResult{Bet: bet, Balance: balance, PoolA: poolA, PoolB: poolB}
		return nil
	})
	if err != nil {
		return nil, classify("place bet", err)
	}

	observability.IncrementBetPlaced(side)
	zap.L().Info("bet placed",
		zap.String("bet_id", result.Bet.ID.String()),
		zap.String("market_id", marketID.String()),
		zap.String("user_id", userID.String()),
		zap.String("outcome", side),
		zap.Int64("amount", amount))

	event, err := events.NewBetPlaced(events.BetPlaced{
		BetID:    result.Bet.ID,
		MarketID: marketID,
		UserID:   userID,
		Outcome:  side,
		Amount:   amount,
		PoolA:    result.PoolA,
		PoolB:    result.PoolB,
	}, s.now())
	if err == nil {
		publish(ctx, s.publisher, event)
	}
	return result, nil
}

func (s *BettingService) ListUserBets(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Bet, error) {
	l, o := normalizePage(limit, offset)
	bets, err := s.store.Queries().ListBetsByUser(ctx, repository.ListBetsByUserParams{UserID: userID, Limit: l, Offset: o})
	if err != nil {
		return nil, storageError("list user bets", err)
	}
	if bets == nil {
		bets = []models.Bet{}
	}
	return bets, nil
}
