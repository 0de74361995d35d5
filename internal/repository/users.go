package repository

import (
	"context"
	"fmt"

	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, email, wallet_address, role, total_wagered, total_won, rank_points, rank, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.WalletAddress, &u.Role,
		&u.TotalWagered, &u.TotalWon, &u.RankPoints, &u.Rank, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (q *Queries) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, username, email, wallet_address, role, rank, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING created_at`
	err := q.db.QueryRow(ctx, query, user.ID, user.Username, user.Email, user.WalletAddress, user.Role, user.Rank).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (q *Queries) GetUserForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

type UpdateUserStatsParams struct {
	ID           uuid.UUID
	TotalWagered int64
	TotalWon     int64
	RankPoints   int64
	Rank         string
}

func (q *Queries) UpdateUserStats(ctx context.Context, arg UpdateUserStatsParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE users
		SET total_wagered = $2, total_won = $3, rank_points = $4, rank = $5
		WHERE id = $1`,
		arg.ID, arg.TotalWagered, arg.TotalWon, arg.RankPoints, arg.Rank)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) ListLeaderboard(ctx context.Context, limit int32) ([]models.User, error) {
	rows, err := q.db.Query(ctx, `SELECT `+userColumns+` FROM users
		WHERE role <> 'admin'
		ORDER BY rank_points DESC, total_won DESC, created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
