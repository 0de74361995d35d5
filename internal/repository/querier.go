package repository

import (
	"context"

	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/google/uuid"
)

// Querier is the full data access surface. Single-row lookups return
// pgx.ErrNoRows when nothing matches; updates return affected row counts.
type Querier interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateUserStats(ctx context.Context, arg UpdateUserStatsParams) (int64, error)
	ListLeaderboard(ctx context.Context, limit int32) ([]models.User, error)

	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	GetWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	GetWalletByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	CreditWallet(ctx context.Context, walletID uuid.UUID, amount int64) (int64, error)
	DebitWallet(ctx context.Context, walletID uuid.UUID, amount int64) (int64, error)

	CreateMarket(ctx context.Context, market *models.Market) error
	GetMarket(ctx context.Context, id uuid.UUID) (*models.Market, error)
	GetMarketForUpdate(ctx context.Context, id uuid.UUID) (*models.Market, error)
	ListMarkets(ctx context.Context, arg ListMarketsParams) ([]models.Market, error)
	UpdateMarketStatus(ctx context.Context, id uuid.UUID, status string) (int64, error)
	MarkMarketSettled(ctx context.Context, arg MarkMarketSettledParams) (int64, error)
	AddToPool(ctx context.Context, arg AddToPoolParams) (int64, error)

	CreateBet(ctx context.Context, bet *models.Bet) error
	ListBetsByMarket(ctx context.Context, marketID uuid.UUID) ([]models.Bet, error)
	ListBetsByMarketForUpdate(ctx context.Context, marketID uuid.UUID) ([]models.Bet, error)
	ListBetsByUser(ctx context.Context, arg ListBetsByUserParams) ([]models.Bet, error)
	UpdateBetSettlement(ctx context.Context, arg UpdateBetSettlementParams) (int64, error)

	CreateTransaction(ctx context.Context, arg CreateTransactionParams) (*models.Transaction, error)
	ListTransactionsByWallet(ctx context.Context, arg ListTransactionsByWalletParams) ([]models.Transaction, error)

	InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (int64, error)
	ListAuditLog(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.AuditEntry, error)

	GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKey, error)
	ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKey, error)
	FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error)
	DeleteInProgressIdempotencyKey(ctx context.Context, key, requestHash string) (int64, error)

	ListPoolDiscrepancies(ctx context.Context) ([]PoolDiscrepancy, error)
	ListOverpaidMarkets(ctx context.Context) ([]OverpaidMarket, error)
	ListSettledMarketsWithActiveBets(ctx context.Context) ([]uuid.UUID, error)
}

var _ Querier = (*Queries)(nil)
