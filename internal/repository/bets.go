package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const betColumns = `id, market_id, user_id, outcome, amount, status, actual_payout, settled_at, created_at`

func scanBet(row pgx.Row) (*models.Bet, error) {
	b := &models.Bet{}
	err := row.Scan(&b.ID, &b.MarketID, &b.UserID, &b.Outcome, &b.Amount, &b.Status,
		&b.ActualPayout, &b.SettledAt, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func collectBets(rows pgx.Rows) ([]models.Bet, error) {
	defer rows.Close()
	var bets []models.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}

func (q *Queries) CreateBet(ctx context.Context, bet *models.Bet) error {
	query := `INSERT INTO bets (id, market_id, user_id, outcome, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING created_at`
	err := q.db.QueryRow(ctx, query, bet.ID, bet.MarketID, bet.UserID, bet.Outcome, bet.Amount, bet.Status).Scan(&bet.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bet: %w", err)
	}
	return nil
}

func (q *Queries) ListBetsByMarket(ctx context.Context, marketID uuid.UUID) ([]models.Bet, error) {
	rows, err := q.db.Query(ctx, `SELECT `+betColumns+` FROM bets WHERE market_id = $1 ORDER BY created_at, id`, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}
	return collectBets(rows)
}

// ListBetsByMarketForUpdate locks every bet row of the market.
func (q *Queries) ListBetsByMarketForUpdate(ctx context.Context, marketID uuid.UUID) ([]models.Bet, error) {
	rows, err := q.db.Query(ctx, `SELECT `+betColumns+` FROM bets WHERE market_id = $1 ORDER BY id FOR UPDATE`, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock bets: %w", err)
	}
	return collectBets(rows)
}

type ListBetsByUserParams struct {
	UserID uuid.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListBetsByUser(ctx context.Context, arg ListBetsByUserParams) ([]models.Bet, error) {
	rows, err := q.db.Query(ctx, `SELECT `+betColumns+` FROM bets WHERE user_id = $1
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list user bets: %w", err)
	}
	return collectBets(rows)
}

type UpdateBetSettlementParams struct {
	ID           uuid.UUID
	Status       string
	ActualPayout int64
	SettledAt    time.Time
}

// UpdateBetSettlement only moves bets that are still active.
func (q *Queries) UpdateBetSettlement(ctx context.Context, arg UpdateBetSettlementParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE bets SET status = $2, actual_payout = $3, settled_at = $4
		WHERE id = $1 AND status = 'active'`,
		arg.ID, arg.Status, arg.ActualPayout, arg.SettledAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
