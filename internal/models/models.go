package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	WalletAddress *string   `json:"wallet_address,omitempty"`
	Role          string    `json:"role"`
	TotalWagered  int64     `json:"total_wagered_micros"`
	TotalWon      int64     `json:"total_won_micros"`
	RankPoints    int64     `json:"rank_points"`
	Rank          string    `json:"rank"`
	CreatedAt     time.Time `json:"created_at"`
}

type Wallet struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance_micros"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Market struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	OutcomeALabel  string     `json:"outcome_a_label"`
	OutcomeBLabel  string     `json:"outcome_b_label"`
	PoolA          int64      `json:"pool_a_micros"`
	PoolB          int64      `json:"pool_b_micros"`
	BonusPool      int64      `json:"bonus_pool_micros"`
	Status         string     `json:"status"`
	WinningOutcome *string    `json:"winning_outcome"`
	SettledAt      *time.Time `json:"settled_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Bet struct {
	ID           uuid.UUID  `json:"id"`
	MarketID     uuid.UUID  `json:"market_id"`
	UserID       uuid.UUID  `json:"user_id"`
	Outcome      string     `json:"outcome"`
	Amount       int64      `json:"amount_micros"`
	Status       string     `json:"status"`
	ActualPayout *int64     `json:"actual_payout_micros"`
	SettledAt    *time.Time `json:"settled_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Transaction is an append-only ledger record against a wallet.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	WalletID    uuid.UUID       `json:"wallet_id"`
	Type        string          `json:"type"`
	Amount      int64           `json:"amount_micros"`
	Status      string          `json:"status"`
	ReferenceID string          `json:"reference_id"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type AuditEntry struct {
	ID         int64           `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty"`
	Action     string          `json:"action"`
	PrevState  *string         `json:"prev_state,omitempty"`
	NextState  *string         `json:"next_state,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
