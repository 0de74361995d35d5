package domain

// Market statuses.
const (
	MarketStatusPending = "pending"
	MarketStatusActive  = "active"
	MarketStatusLocked  = "locked"
	MarketStatusSettled = "settled"
	MarketStatusVoided  = "voided"
)

// Binary outcomes. A market only ever has these two sides.
const (
	OutcomeA = "A"
	OutcomeB = "B"
)

// Bet statuses.
const (
	BetStatusActive = "active"
	BetStatusWon    = "won"
	BetStatusLost   = "lost"
	BetStatusVoided = "voided"
)

const (
	TxTypeDeposit   = "deposit"
	TxTypeBetPlaced = "bet_placed"
	TxTypeBetWon    = "bet_won"

	TxStatusCompleted = "COMPLETED"
)

// User roles carried in JWT claims.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Audit entity types.
const (
	EntityMarket = "market"
	EntityWallet = "wallet"
)
