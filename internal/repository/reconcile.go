package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PoolDiscrepancy is a market whose stored pools disagree with the sum of
// its bets.
type PoolDiscrepancy struct {
	MarketID  uuid.UUID
	Outcome   string
	PoolTotal int64
	BetTotal  int64
}

// OverpaidMarket is a settled market that paid out more than its total pool.
type OverpaidMarket struct {
	MarketID  uuid.UUID
	TotalPool int64
	TotalPaid int64
}

func (q *Queries) ListPoolDiscrepancies(ctx context.Context) ([]PoolDiscrepancy, error) {
	rows, err := q.db.Query(ctx, `
		WITH sums AS (
			SELECT market_id,
				COALESCE(SUM(amount) FILTER (WHERE outcome = 'A'), 0) AS bet_a,
				COALESCE(SUM(amount) FILTER (WHERE outcome = 'B'), 0) AS bet_b
			FROM bets
			WHERE status <> 'voided'
			GROUP BY market_id
		)
		SELECT m.id, 'A', m.pool_a, COALESCE(s.bet_a, 0)
		FROM markets m LEFT JOIN sums s ON s.market_id = m.id
		WHERE m.pool_a <> COALESCE(s.bet_a, 0)
		UNION ALL
		SELECT m.id, 'B', m.pool_b, COALESCE(s.bet_b, 0)
		FROM markets m LEFT JOIN sums s ON s.market_id = m.id
		WHERE m.pool_b <> COALESCE(s.bet_b, 0)`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pool discrepancies: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PoolDiscrepancy, error) {
		var d PoolDiscrepancy
		err := row.Scan(&d.MarketID, &d.Outcome, &d.PoolTotal, &d.BetTotal)
		return d, err
	})
}

func (q *Queries) ListOverpaidMarkets(ctx context.Context) ([]OverpaidMarket, error) {
	rows, err := q.db.Query(ctx, `
		SELECT m.id, m.pool_a + m.pool_b + m.bonus_pool, COALESCE(SUM(b.actual_payout), 0)::BIGINT
		FROM markets m JOIN bets b ON b.market_id = m.id
		WHERE m.status = 'settled'
		GROUP BY m.id
		HAVING COALESCE(SUM(b.actual_payout), 0) > m.pool_a + m.pool_b + m.bonus_pool`)
	if err != nil {
		return nil, fmt.Errorf("failed to list overpaid markets: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OverpaidMarket, error) {
		var o OverpaidMarket
		err := row.Scan(&o.MarketID, &o.TotalPool, &o.TotalPaid)
		return o, err
	})
}

func (q *Queries) ListSettledMarketsWithActiveBets(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, `SELECT DISTINCT m.id FROM markets m
		JOIN bets b ON b.market_id = m.id
		WHERE m.status = 'settled' AND b.status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settled markets with active bets: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (uuid.UUID, error) {
		var id uuid.UUID
		err := row.Scan(&id)
		return id, err
	})
}
