package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CreateTransactionParams struct {
	ID          uuid.UUID
	WalletID    uuid.UUID
	Type        string
	Amount      int64
	Status      string
	ReferenceID string
	Metadata    json.RawMessage
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	t := &models.Transaction{}
	var meta []byte
	if err := row.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Status, &t.ReferenceID, &meta, &t.CreatedAt); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		t.Metadata = json.RawMessage(meta)
	}
	return t, nil
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (*models.Transaction, error) {
	query := `INSERT INTO transactions (id, wallet_id, type, amount, status, reference_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, wallet_id, type, amount, status, reference_id, metadata, created_at`
	tx, err := scanTransaction(q.db.QueryRow(ctx, query,
		arg.ID, arg.WalletID, arg.Type, arg.Amount, arg.Status, arg.ReferenceID, nullableJSON(arg.Metadata)))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

type ListTransactionsByWalletParams struct {
	WalletID uuid.UUID
	Limit    int32
	Offset   int32
}

func (q *Queries) ListTransactionsByWallet(ctx context.Context, arg ListTransactionsByWalletParams) ([]models.Transaction, error) {
	rows, err := q.db.Query(ctx, `SELECT id, wallet_id, type, amount, status, reference_id, metadata, created_at
		FROM transactions WHERE wallet_id = $1
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, arg.WalletID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
