package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/parimutuel-markets/internal/events"
	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/ayo6706/parimutuel-markets/internal/observability"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

var errInsufficientFunds = models.ErrInsufficientFunds

const (
	defaultPageSize = 50
	maxPageSize     = 200
	publishTimeout  = 3 * time.Second
)

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// normalizePage clamps a limit/offset pair to sane bounds.
func normalizePage(limit, offset int) (int32, int32) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return int32(limit), int32(offset)
}

// publish delivers e after the owning transaction committed. Failures are
// logged and counted, never returned.
func publish(ctx context.Context, p events.Publisher, e events.Event) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.Publish(ctx, e); err != nil {
		observability.IncrementEventPublish(e.Type, "error")
		zap.L().Warn("event publish failed",
			zap.String("type", e.Type),
			zap.String("market_id", e.MarketID.String()),
			zap.Error(err))
		return
	}
	observability.IncrementEventPublish(e.Type, "ok")
}
