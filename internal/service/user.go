package service

import (
	"context"
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

const (
	defaultLeaderboardSize = 20
	maxLeaderboardSize     = 100
)

type UserService struct {
	store QueryStore
	ranks *domain.RankPolicy
}

func NewUserService(store QueryStore, ranks *domain.RankPolicy) *UserService {
	if ranks == nil {
		ranks = domain.DefaultRankPolicy()
	}
	return &UserService{store: store, ranks: ranks}
}

type RegisterInput struct {
	Username      string
	Email         string
	WalletAddress string
	Role          string
}

// Register creates the user together with an empty wallet.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, *models.Wallet, error) {
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return nil, nil, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, role)
	}
	if strings.TrimSpace(in.Username) == "" {
		return nil, nil, fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	user := &models.User{
		ID:       uuid.New(),
		Username: strings.TrimSpace(in.Username),
		Email:    strings.TrimSpace(in.Email),
		Role:     role,
		Rank:     s.ranks.Table.Lookup(0),
	}
	if addr := strings.ToLower(strings.TrimSpace(in.WalletAddress)); addr != "" {
		user.WalletAddress = &addr
	}
	wallet := &models.Wallet{ID: uuid.New(), UserID: user.ID}

	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		if err := q.CreateUser(ctx, user); err != nil {
			if isUniqueViolation(err) {
				return ErrUsernameTaken
			}
			return err
		}
		return q.CreateWallet(ctx, wallet)
	})
	if err != nil {
		return nil, nil, classify("register user", err)
	}

	zap.L().Info("user registered", zap.String("user_id", user.ID.String()), zap.String("username", user.Username))
	return user, wallet, nil
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.Queries().GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, storageError("get user", err)
	}
	return user, nil
}

// Leaderboard ranks users by rank points, then total won.
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}
	users, err := s.store.Queries().ListLeaderboard(ctx, int32(limit))
	if err != nil {
		return nil, storageError("list leaderboard", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}
