package repository

import (
	"context"
	"fmt"

	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, user_id, balance, created_at, updated_at`

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	w := &models.Wallet{}
	if err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return w, nil
}

func (q *Queries) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	query := `INSERT INTO wallets (id, user_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW()) RETURNING created_at, updated_at`
	err := q.db.QueryRow(ctx, query, wallet.ID, wallet.UserID, wallet.Balance).Scan(&wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (q *Queries) GetWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return scanWallet(q.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
}

func (q *Queries) GetWalletByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return scanWallet(q.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID))
}

// CreditWallet adds amount atomically and returns the new balance.
func (q *Queries) CreditWallet(ctx context.Context, walletID uuid.UUID, amount int64) (int64, error) {
	var balance int64
	err := q.db.QueryRow(ctx, `UPDATE wallets SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1 RETURNING balance`, walletID, amount).Scan(&balance)
	return balance, err
}

// DebitWallet subtracts amount only if the balance covers it; otherwise
// pgx.ErrNoRows.
func (q *Queries) DebitWallet(ctx context.Context, walletID uuid.UUID, amount int64) (int64, error) {
	var balance int64
	err := q.db.QueryRow(ctx, `UPDATE wallets SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2 RETURNING balance`, walletID, amount).Scan(&balance)
	return balance, err
}
