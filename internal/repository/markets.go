package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const marketColumns = `id, title, description, outcome_a_label, outcome_b_label, pool_a, pool_b, bonus_pool,
	status, winning_outcome, settled_at, created_at, updated_at`

func scanMarket(row pgx.Row) (*models.Market, error) {
	m := &models.Market{}
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.OutcomeALabel, &m.OutcomeBLabel,
		&m.PoolA, &m.PoolB, &m.BonusPool, &m.Status, &m.WinningOutcome, &m.SettledAt,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (q *Queries) CreateMarket(ctx context.Context, market *models.Market) error {
	query := `INSERT INTO markets (id, title, description, outcome_a_label, outcome_b_label, bonus_pool, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING created_at, updated_at`
	err := q.db.QueryRow(ctx, query, market.ID, market.Title, market.Description,
		market.OutcomeALabel, market.OutcomeBLabel, market.BonusPool, market.Status).
		Scan(&market.CreatedAt, &market.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create market: %w", err)
	}
	return nil
}

func (q *Queries) GetMarket(ctx context.Context, id uuid.UUID) (*models.Market, error) {
	return scanMarket(q.db.QueryRow(ctx, `SELECT `+marketColumns+` FROM markets WHERE id = $1`, id))
}

// GetMarketForUpdate row-locks the market until the enclosing transaction ends.
func (q *Queries) GetMarketForUpdate(ctx context.Context, id uuid.UUID) (*models.Market, error) {
	return scanMarket(q.db.QueryRow(ctx, `SELECT `+marketColumns+` FROM markets WHERE id = $1 FOR UPDATE`, id))
}

type ListMarketsParams struct {
	Status string // empty means any
	Limit  int32
	Offset int32
}

func (q *Queries) ListMarkets(ctx context.Context, arg ListMarketsParams) ([]models.Market, error) {
	rows, err := q.db.Query(ctx, `SELECT `+marketColumns+` FROM markets
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}
	defer rows.Close()

	var markets []models.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (q *Queries) UpdateMarketStatus(ctx context.Context, id uuid.UUID, status string) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE markets SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type MarkMarketSettledParams struct {
	ID             uuid.UUID
	WinningOutcome string
	SettledAt      time.Time
}

// MarkMarketSettled never touches a market that is already settled.
func (q *Queries) MarkMarketSettled(ctx context.Context, arg MarkMarketSettledParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE markets
		SET status = $2, winning_outcome = $3, settled_at = $4, updated_at = $4
		WHERE id = $1 AND status <> $2`,
		arg.ID, domain.MarketStatusSettled, arg.WinningOutcome, arg.SettledAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type AddToPoolParams struct {
	ID      uuid.UUID
	Outcome string
	Amount  int64
}

func (q *Queries) AddToPool(ctx context.Context, arg AddToPoolParams) (int64, error) {
	var query string
	switch arg.Outcome {
	case domain.OutcomeA:
		query = `UPDATE markets SET pool_a = pool_a + $2, updated_at = NOW() WHERE id = $1`
	case domain.OutcomeB:
		query = `UPDATE markets SET pool_b = pool_b + $2, updated_at = NOW() WHERE id = $1`
	default:
		return 0, fmt.Errorf("unknown outcome %q", arg.Outcome)
	}
	tag, err := q.db.Exec(ctx, query, arg.ID, arg.Amount)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
