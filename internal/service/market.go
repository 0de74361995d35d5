package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/ayo6706/parimutuel-markets/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// MarketService owns market creation and the non-terminal status machine.
type MarketService struct {
	store QueryStore
	audit *AuditService
}

func NewMarketService(store QueryStore) *MarketService {
	return &MarketService{store: store, audit: NewAuditService(store)}
}

type CreateMarketInput struct {
	Title         string
	Description   string
	OutcomeALabel string
	OutcomeBLabel string
	BonusPool     int64
}

func (s *MarketService) CreateMarket(ctx context.Context, in CreateMarketInput, actorID *uuid.UUID) (*models.Market, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidMarket)
	}
	if in.BonusPool < 0 {
		return nil, fmt.Errorf("%w: bonus pool must not be negative", ErrInvalidMarket)
	}
	labelA, labelB := strings.TrimSpace(in.OutcomeALabel), strings.TrimSpace(in.OutcomeBLabel)
	if labelA == "" {
		labelA = "Yes"
	}
	if labelB == "" {
		labelB = "No"
	}

	market := &models.Market{
		ID:            uuid.New(),
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		OutcomeALabel: labelA,
		OutcomeBLabel: labelB,
		BonusPool:     in.BonusPool,
		Status:        domain.MarketStatusPending,
	}

	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		if err := q.CreateMarket(ctx, market); err != nil {
			return err
		}
		meta, _ := json.Marshal(map[string]any{"title": title, "bonus_pool": in.BonusPool})
		return s.audit.Write(ctx, q, domain.EntityMarket, market.ID, actorID, "created", "", domain.MarketStatusPending, meta)
	})
	if err != nil {
		return nil, classify("create market", err)
	}

	zap.L().Info("market created", zap.String("market_id", market.ID.String()), zap.String("title", title))
	return market, nil
}

func (s *MarketService) GetMarket(ctx context.Context, id uuid.UUID) (*models.Market, error) {
	market, err := s.store.Queries().GetMarket(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMarketNotFound
		}
		return nil, storageError("get market", err)
	}
	return market, nil
}

// ListMarkets returns markets newest first, optionally filtered by status.
func (s *MarketService) ListMarkets(ctx context.Context, status string, limit, offset int) ([]models.Market, error) {
	status = normalizeStatus(status)
	if status != "" && !isKnownStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	l, o := normalizePage(limit, offset)
	markets, err := s.store.Queries().ListMarkets(ctx, repository.ListMarketsParams{Status: status, Limit: l, Offset: o})
	if err != nil {
		return nil, storageError("list markets", err)
	}
	if markets == nil {
		markets = []models.Market{}
	}
	return markets, nil
}

// TransitionStatus moves a market along pending -> active|locked,
// active -> locked and locked -> active. Moving to the current status is a
// no-op.
func (s *MarketService) TransitionStatus(ctx context.Context, id uuid.UUID, next string, actorID *uuid.UUID) (*models.Market, error) {
	next = normalizeStatus(next)
	var market *models.Market
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		m, err := q.GetMarketForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrMarketNotFound
			}
			return err
		}
		market = m
		if m.Status == next {
			return nil
		}
		if m.Status == domain.MarketStatusSettled {
			return ErrMarketAlreadySettled
		}
		if !canTransition(m.Status, next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, next)
		}

		rows, err := q.UpdateMarketStatus(ctx, id, next)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "update market status"); err != nil {
			return err
		}
		if err := s.audit.Write(ctx, q, domain.EntityMarket, id, actorID, "status_changed", m.Status, next, nil); err != nil {
			return err
		}
		market.Status = next
		return nil
	})
	if err != nil {
		return nil, classify("transition market", err)
	}
	return market, nil
}

func (s *MarketService) ListBets(ctx context.Context, marketID uuid.UUID) ([]models.Bet, error) {
	if _, err := s.GetMarket(ctx, marketID); err != nil {
		return nil, err
	}
	bets, err := s.store.Queries().ListBetsByMarket(ctx, marketID)
	if err != nil {
		return nil, storageError("list bets", err)
	}
	if bets == nil {
		bets = []models.Bet{}
	}
	return bets, nil
}

// History returns the market's audit trail.
func (s *MarketService) History(ctx context.Context, marketID uuid.UUID) ([]models.AuditEntry, error) {
	if _, err := s.GetMarket(ctx, marketID); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, domain.EntityMarket, marketID)
}
