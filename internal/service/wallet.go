package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/ayo6706/parimutuel-markets/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type WalletService struct {
	store QueryStore
	audit *AuditService
}

func NewWalletService(store QueryStore) *WalletService {
	return &WalletService{store: store, audit: NewAuditService(store)}
}

func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.store.Queries().GetWalletByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, storageError("get wallet", err)
	}
	return wallet, nil
}

// Deposit credits a user's wallet. It is an operator action and is audited.
func (s *WalletService) Deposit(ctx context.Context, userID uuid.UUID, amount int64, referenceID string, actorID *uuid.UUID) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	referenceID = strings.TrimSpace(referenceID)

	var tx *models.Transaction
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		wallet, err := q.GetWalletByUserForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrWalletNotFound
			}
			return err
		}
		if _, err := q.CreditWallet(ctx, wallet.ID, amount); err != nil {
			return err
		}
		if referenceID == "" {
			referenceID = uuid.NewString()
		}
		tx, err = q.CreateTransaction(ctx, repository.CreateTransactionParams{
			ID:          uuid.New(),
			WalletID:    wallet.ID,
			Type:        domain.TxTypeDeposit,
			Amount:      amount,
			Status:      domain.TxStatusCompleted,
			ReferenceID: referenceID,
		})
		if err != nil {
			return err
		}
		meta, _ := json.Marshal(map[string]any{"amount": amount, "reference_id": referenceID})
		return s.audit.Write(ctx, q, domain.EntityWallet, wallet.ID, actorID, "deposit", "", "", meta)
	})
	if err != nil {
		return nil, classify("deposit", err)
	}

	zap.L().Info("deposit credited", zap.String("user_id", userID.String()), zap.Int64("amount", amount))
	return tx, nil
}

// Statement lists the wallet's ledger, newest first. Pages start at 1.
func (s *WalletService) Statement(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]models.Transaction, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	l, o := normalizePage(pageSize, (page-1)*pageSize)
	txs, err := s.store.Queries().ListTransactionsByWallet(ctx, repository.ListTransactionsByWalletParams{
		WalletID: wallet.ID,
		Limit:    l,
		Offset:   o,
	})
	if err != nil {
		return nil, storageError("list transactions", err)
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return txs, nil
}
