package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

type IdempotencyKey struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const idempotencyColumns = `idempotency_key, request_hash, method, path, response_status, response_body,
	content_type, in_progress, created_at, updated_at`

func scanIdempotencyKey(row pgx.Row) (IdempotencyKey, error) {
	var k IdempotencyKey
	err := row.Scan(&k.IdempotencyKey, &k.RequestHash, &k.Method, &k.Path, &k.ResponseStatus,
		&k.ResponseBody, &k.ContentType, &k.InProgress, &k.CreatedAt, &k.UpdatedAt)
	return k, err
}

func (q *Queries) GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKey, error) {
	return scanIdempotencyKey(q.db.QueryRow(ctx, `SELECT `+idempotencyColumns+`
		FROM idempotency_keys WHERE idempotency_key = $1`, key))
}

type ReserveIdempotencyKeyParams struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
}

// ReserveIdempotencyKey returns pgx.ErrNoRows when the key already exists.
func (q *Queries) ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKey, error) {
	return scanIdempotencyKey(q.db.QueryRow(ctx, `INSERT INTO idempotency_keys (idempotency_key, request_hash, method, path)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING `+idempotencyColumns,
		arg.IdempotencyKey, arg.RequestHash, arg.Method, arg.Path))
}

type FinalizeIdempotencyKeyParams struct {
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	IdempotencyKey string
	RequestHash    string
}

func (q *Queries) FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error) {
	return scanIdempotencyKey(q.db.QueryRow(ctx, `UPDATE idempotency_keys
		SET response_status = $1, response_body = $2, content_type = $3, in_progress = FALSE, updated_at = NOW()
		WHERE idempotency_key = $4 AND request_hash = $5
		RETURNING `+idempotencyColumns,
		arg.ResponseStatus, arg.ResponseBody, arg.ContentType, arg.IdempotencyKey, arg.RequestHash))
}

// DeleteInProgressIdempotencyKey drops a reservation that never completed so
// the same key can be retried. Finalized keys are left alone.
func (q *Queries) DeleteInProgressIdempotencyKey(ctx context.Context, key, requestHash string) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM idempotency_keys
		WHERE idempotency_key = $1 AND request_hash = $2 AND in_progress`, key, requestHash)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
