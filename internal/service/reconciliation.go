package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/parimutuel-markets/internal/observability"
	"github.com/ayo6706/parimutuel-markets/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconciliationReport lists every violation found by one run.
type ReconciliationReport struct {
	PoolDiscrepancies []repository.PoolDiscrepancy
	OverpaidMarkets   []repository.OverpaidMarket
	StaleActiveBets   []uuid.UUID
}

// Clean reports whether the run found nothing.
func (r ReconciliationReport) Clean() bool {
	return len(r.PoolDiscrepancies) == 0 && len(r.OverpaidMarkets) == 0 && len(r.StaleActiveBets) == 0
}

// ReconciliationService verifies pool and payout invariants across markets.
type ReconciliationService struct {
	store QueryStore
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(store QueryStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// Run checks that stored pools equal the sum of their bets, that no settled
// market paid more than its total pool, and that settled markets have no
// active bets left.
func (s *ReconciliationService) Run(ctx context.Context) (ReconciliationReport, error) {
	queries := s.store.Queries()
	var report ReconciliationReport

	discrepancies, err := queries.ListPoolDiscrepancies(ctx)
	if err != nil {
		return report, fmt.Errorf("run pool discrepancy query: %w", err)
	}
	report.PoolDiscrepancies = discrepancies
	for _, d := range discrepancies {
		observability.IncrementPoolImbalance("pool_vs_bets")
		zap.L().Error("CRITICAL: pool does not match its bets",
			zap.String("market_id", d.MarketID.String()),
			zap.String("outcome", d.Outcome),
			zap.Int64("pool", d.PoolTotal),
			zap.Int64("bets", d.BetTotal))
	}

	overpaid, err := queries.ListOverpaidMarkets(ctx)
	if err != nil {
		return report, fmt.Errorf("run overpaid market query: %w", err)
	}
	report.OverpaidMarkets = overpaid
	for _, o := range overpaid {
		observability.IncrementPoolImbalance("overpaid")
		zap.L().Error("CRITICAL: settled market paid more than its pool",
			zap.String("market_id", o.MarketID.String()),
			zap.Int64("total_pool", o.TotalPool),
			zap.Int64("total_paid", o.TotalPaid))
	}

	stale, err := queries.ListSettledMarketsWithActiveBets(ctx)
	if err != nil {
		return report, fmt.Errorf("run stale bet query: %w", err)
	}
	report.StaleActiveBets = stale
	for _, id := range stale {
		observability.IncrementPoolImbalance("active_bet_after_settlement")
		zap.L().Error("CRITICAL: settled market still has active bets", zap.String("market_id", id.String()))
	}

	if report.Clean() {
		zap.L().Info("Pools Balanced")
	}
	return report, nil
}
