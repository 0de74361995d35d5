// Package memstore is an in-memory implementation of repository.Querier
// for service and handler tests. It mirrors the SQL semantics the services
// rely on: pgx.ErrNoRows for missing rows, guarded debits, unique
// usernames and rollback of a failed RunInTx.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/ayo6706/parimutuel-markets/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type state struct {
	seq          int64
	users        map[uuid.UUID]models.User
	userSeq      map[uuid.UUID]int64
	wallets      map[uuid.UUID]models.Wallet
	markets      map[uuid.UUID]models.Market
	marketSeq    map[uuid.UUID]int64
	bets         map[uuid.UUID]models.Bet
	betSeq       map[uuid.UUID]int64
	transactions []models.Transaction
	audit        []models.AuditEntry
	idempotency  map[string]repository.IdempotencyKey
}

func newState() *state {
	return &state{
		users:       map[uuid.UUID]models.User{},
		userSeq:     map[uuid.UUID]int64{},
		wallets:     map[uuid.UUID]models.Wallet{},
		markets:     map[uuid.UUID]models.Market{},
		marketSeq:   map[uuid.UUID]int64{},
		bets:        map[uuid.UUID]models.Bet{},
		betSeq:      map[uuid.UUID]int64{},
		idempotency: map[string]repository.IdempotencyKey{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.userSeq {
		c.userSeq[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.markets {
		c.markets[k] = v
	}
	for k, v := range s.marketSeq {
		c.marketSeq[k] = v
	}
	for k, v := range s.bets {
		c.bets[k] = v
	}
	for k, v := range s.betSeq {
		c.betSeq[k] = v
	}
	c.transactions = append([]models.Transaction(nil), s.transactions...)
	c.audit = append([]models.AuditEntry(nil), s.audit...)
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	return c
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store satisfies the service layer's store contract. Transactions are
// serialised, which stands in for the row locks Postgres would take.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data *state

	failMu   sync.Mutex
	failures map[string]error

	Now     func() time.Time
	PingErr error
}

func New() *Store {
	return &Store{
		data:     newState(),
		failures: map[string]error{},
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// FailOn makes every later call of the named Querier method return err.
// A nil err clears the failure.
func (s *Store) FailOn(method string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

func (s *Store) failure(method string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failures[method]
}

func (s *Store) Queries() repository.Querier {
	return &querier{store: s}
}

func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(&querier{store: s}); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	if err := s.failure("Commit"); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.PingErr
}

// PutMarket stores m as given, pools included.
func (s *Store) PutMarket(m models.Market) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.Now()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	if _, ok := s.data.marketSeq[m.ID]; !ok {
		s.data.marketSeq[m.ID] = s.data.next()
	}
	s.data.markets[m.ID] = m
}

// PutBet stores b as given without touching pools or wallets.
func (s *Store) PutBet(b models.Bet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.Now()
	}
	if _, ok := s.data.betSeq[b.ID]; !ok {
		s.data.betSeq[b.ID] = s.data.next()
	}
	s.data.bets[b.ID] = b
}

// Transactions returns a copy of the ledger in insertion order.
func (s *Store) Transactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Transaction(nil), s.data.transactions...)
}

type querier struct {
	store *Store
}

var _ repository.Querier = (*querier)(nil)

func (q *querier) begin(method string) (*state, func(), error) {
	if err := q.store.failure(method); err != nil {
		return nil, nil, err
	}
	q.store.mu.Lock()
	return q.store.data, q.store.mu.Unlock, nil
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func (q *querier) CreateUser(ctx context.Context, user *models.User) error {
	s, unlock, err := q.begin("CreateUser")
	if err != nil {
		return err
	}
	defer unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return uniqueViolation("users_username_key")
		}
		if user.WalletAddress != nil && u.WalletAddress != nil && *u.WalletAddress == *user.WalletAddress {
			return uniqueViolation("users_wallet_address_key")
		}
	}
	if _, ok := s.users[user.ID]; ok {
		return uniqueViolation("users_pkey")
	}
	user.CreatedAt = q.store.Now()
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	s.users[user.ID] = *user
	s.userSeq[user.ID] = s.next()
	return nil
}

func (q *querier) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s, unlock, err := q.begin("GetUser")
	if err != nil {
		return nil, err
	}
	defer unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (q *querier) GetUserForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if err := q.store.failure("GetUserForUpdate"); err != nil {
		return nil, err
	}
	return q.GetUser(ctx, id)
}

func (q *querier) UpdateUserStats(ctx context.Context, arg repository.UpdateUserStatsParams) (int64, error) {
	s, unlock, err := q.begin("UpdateUserStats")
	if err != nil {
		return 0, err
	}
	defer unlock()
	u, ok := s.users[arg.ID]
	if !ok {
		return 0, nil
	}
	u.TotalWagered = arg.TotalWagered
	u.TotalWon = arg.TotalWon
	u.RankPoints = arg.RankPoints
	u.Rank = arg.Rank
	s.users[arg.ID] = u
	return 1, nil
}

func (q *querier) ListLeaderboard(ctx context.Context, limit int32) ([]models.User, error) {
	s, unlock, err := q.begin("ListLeaderboard")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var users []models.User
	for _, u := range s.users {
		if u.Role == domain.RoleAdmin {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if a.RankPoints != b.RankPoints {
			return a.RankPoints > b.RankPoints
		}
		if a.TotalWon != b.TotalWon {
			return a.TotalWon > b.TotalWon
		}
		return s.userSeq[a.ID] < s.userSeq[b.ID]
	})
	if int(limit) < len(users) {
		users = users[:limit]
	}
	return users, nil
}

func (q *querier) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	s, unlock, err := q.begin("CreateWallet")
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := s.users[wallet.UserID]; !ok {
		return &pgconn.PgError{Code: "23503", ConstraintName: "wallets_user_id_fkey"}
	}
	for _, w := range s.wallets {
		if w.UserID == wallet.UserID {
			return uniqueViolation("wallets_user_id_key")
		}
	}
	now := q.store.Now()
	wallet.CreatedAt = now
	wallet.UpdatedAt = now
	s.wallets[wallet.ID] = *wallet
	return nil
}

func (q *querier) GetWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	s, unlock, err := q.begin("GetWalletByUser")
	if err != nil {
		return nil, err
	}
	defer unlock()
	for _, w := range s.wallets {
		if w.UserID == userID {
			return &w, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (q *querier) GetWalletByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if err := q.store.failure("GetWalletByUserForUpdate"); err != nil {
		return nil, err
	}
	return q.GetWalletByUser(ctx, userID)
}

func (q *querier) CreditWallet(ctx context.Context, walletID uuid.UUID, amount int64) (int64, error) {
	s, unlock, err := q.begin("CreditWallet")
	if err != nil {
		return 0, err
	}
	defer unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	w.Balance += amount
	w.UpdatedAt = q.store.Now()
	s.wallets[walletID] = w
	return w.Balance, nil
}

func (q *querier) DebitWallet(ctx context.Context, walletID uuid.UUID, amount int64) (int64, error) {
	s, unlock, err := q.begin("DebitWallet")
	if err != nil {
		return 0, err
	}
	defer unlock()
	w, ok := s.wallets[walletID]
	if !ok || w.Balance < amount {
		return 0, pgx.ErrNoRows
	}
	w.Balance -= amount
	w.UpdatedAt = q.store.Now()
	s.wallets[walletID] = w
	return w.Balance, nil
}

func (q *querier) CreateMarket(ctx context.Context, market *models.Market) error {
	s, unlock, err := q.begin("CreateMarket")
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := s.markets[market.ID]; ok {
		return uniqueViolation("markets_pkey")
	}
	now := q.store.Now()
	market.PoolA, market.PoolB = 0, 0
	market.WinningOutcome, market.SettledAt = nil, nil
	market.CreatedAt, market.UpdatedAt = now, now
	s.markets[market.ID] = *market
	s.marketSeq[market.ID] = s.next()
	return nil
}

func (q *querier) GetMarket(ctx context.Context, id uuid.UUID) (*models.Market, error) {
	s, unlock, err := q.begin("GetMarket")
	if err != nil {
		return nil, err
	}
	defer unlock()
	m, ok := s.markets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &m, nil
}

func (q *querier) GetMarketForUpdate(ctx context.Context, id uuid.UUID) (*models.Market, error) {
	if err := q.store.failure("GetMarketForUpdate"); err != nil {
		return nil, err
	}
	return q.GetMarket(ctx, id)
}

func (q *querier) ListMarkets(ctx context.Context, arg repository.ListMarketsParams) ([]models.Market, error) {
	s, unlock, err := q.begin("ListMarkets")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var markets []models.Market
	for _, m := range s.markets {
		if arg.Status != "" && m.Status != arg.Status {
			continue
		}
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool {
		return s.marketSeq[markets[i].ID] > s.marketSeq[markets[j].ID]
	})
	return page(markets, arg.Limit, arg.Offset), nil
}

func (q *querier) UpdateMarketStatus(ctx context.Context, id uuid.UUID, status string) (int64, error) {
	s, unlock, err := q.begin("UpdateMarketStatus")
	if err != nil {
		return 0, err
	}
	defer unlock()
	m, ok := s.markets[id]
	if !ok {
		return 0, nil
	}
	m.Status = status
	m.UpdatedAt = q.store.Now()
	s.markets[id] = m
	return 1, nil
}

func (q *querier) MarkMarketSettled(ctx context.Context, arg repository.MarkMarketSettledParams) (int64, error) {
	s, unlock, err := q.begin("MarkMarketSettled")
	if err != nil {
		return 0, err
	}
	defer unlock()
	m, ok := s.markets[arg.ID]
	if !ok || m.Status == domain.MarketStatusSettled {
		return 0, nil
	}
	outcome := arg.WinningOutcome
	settledAt := arg.SettledAt
	m.Status = domain.MarketStatusSettled
	m.WinningOutcome = &outcome
	m.SettledAt = &settledAt
	m.UpdatedAt = settledAt
	s.markets[arg.ID] = m
	return 1, nil
}

func (q *querier) AddToPool(ctx context.Context, arg repository.AddToPoolParams) (int64, error) {
	s, unlock, err := q.begin("AddToPool")
	if err != nil {
		return 0, err
	}
	defer unlock()
	m, ok := s.markets[arg.ID]
	if !ok {
		return 0, nil
	}
	switch arg.Outcome {
	case domain.OutcomeA:
		m.PoolA += arg.Amount
	case domain.OutcomeB:
		m.PoolB += arg.Amount
	default:
		return 0, fmt.Errorf("unknown outcome %q", arg.Outcome)
	}
	m.UpdatedAt = q.store.Now()
	s.markets[arg.ID] = m
	return 1, nil
}

func (q *querier) CreateBet(ctx context.Context, bet *models.Bet) error {
	s, unlock, err := q.begin("CreateBet")
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := s.markets[bet.MarketID]; !ok {
		return &pgconn.PgError{Code: "23503", ConstraintName: "bets_market_id_fkey"}
	}
	if _, ok := s.users[bet.UserID]; !ok {
		return &pgconn.PgError{Code: "23503", ConstraintName: "bets_user_id_fkey"}
	}
	if bet.Amount <= 0 {
		return &pgconn.PgError{Code: "23514", ConstraintName: "bets_amount_check"}
	}
	bet.CreatedAt = q.store.Now()
	s.bets[bet.ID] = *bet
	s.betSeq[bet.ID] = s.next()
	return nil
}

func (q *querier) betsWhere(s *state, keep func(models.Bet) bool) []models.Bet {
	var bets []models.Bet
	for _, b := range s.bets {
		if keep(b) {
			bets = append(bets, b)
		}
	}
	sort.Slice(bets, func(i, j int) bool {
		return s.betSeq[bets[i].ID] < s.betSeq[bets[j].ID]
	})
	return bets
}

func (q *querier) ListBetsByMarket(ctx context.Context, marketID uuid.UUID) ([]models.Bet, error) {
	s, unlock, err := q.begin("ListBetsByMarket")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return q.betsWhere(s, func(b models.Bet) bool { return b.MarketID == marketID }), nil
}

func (q *querier) ListBetsByMarketForUpdate(ctx context.Context, marketID uuid.UUID) ([]models.Bet, error) {
	s, unlock, err := q.begin("ListBetsByMarketForUpdate")
	if err != nil {
		return nil, err
	}
	defer unlock()
	bets := q.betsWhere(s, func(b models.Bet) bool { return b.MarketID == marketID })
	sort.Slice(bets, func(i, j int) bool { return bets[i].ID.String() < bets[j].ID.String() })
	return bets, nil
}

func (q *querier) ListBetsByUser(ctx context.Context, arg repository.ListBetsByUserParams) ([]models.Bet, error) {
	s, unlock, err := q.begin("ListBetsByUser")
	if err != nil {
		return nil, err
	}
	defer unlock()
	bets := q.betsWhere(s, func(b models.Bet) bool { return b.UserID == arg.UserID })
	reverse(bets)
	return page(bets, arg.Limit, arg.Offset), nil
}

func (q *querier) UpdateBetSettlement(ctx context.Context, arg repository.UpdateBetSettlementParams) (int64, error) {
	s, unlock, err := q.begin("UpdateBetSettlement")
	if err != nil {
		return 0, err
	}
	defer unlock()
	b, ok := s.bets[arg.ID]
	if !ok || b.Status != domain.BetStatusActive {
		return 0, nil
	}
	payout := arg.ActualPayout
	settledAt := arg.SettledAt
	b.Status = arg.Status
	b.ActualPayout = &payout
	b.SettledAt = &settledAt
	s.bets[arg.ID] = b
	return 1, nil
}

func (q *querier) CreateTransaction(ctx context.Context, arg repository.CreateTransactionParams) (*models.Transaction, error) {
	s, unlock, err := q.begin("CreateTransaction")
	if err != nil {
		return nil, err
	}
	defer unlock()
	if _, ok := s.wallets[arg.WalletID]; !ok {
		return nil, &pgconn.PgError{Code: "23503", ConstraintName: "transactions_wallet_id_fkey"}
	}
	var meta json.RawMessage
	if len(arg.Metadata) > 0 {
		meta = append(json.RawMessage(nil), arg.Metadata...)
	}
	tx := models.Transaction{
		ID:          arg.ID,
		WalletID:    arg.WalletID,
		Type:        arg.Type,
		Amount:      arg.Amount,
		Status:      arg.Status,
		ReferenceID: arg.ReferenceID,
		Metadata:    meta,
		CreatedAt:   q.store.Now(),
	}
	s.transactions = append(s.transactions, tx)
	return &tx, nil
}

func (q *querier) ListTransactionsByWallet(ctx context.Context, arg repository.ListTransactionsByWalletParams) ([]models.Transaction, error) {
	s, unlock, err := q.begin("ListTransactionsByWallet")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var txs []models.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].WalletID == arg.WalletID {
			txs = append(txs, s.transactions[i])
		}
	}
	return page(txs, arg.Limit, arg.Offset), nil
}

func (q *querier) InsertAuditLog(ctx context.Context, arg repository.InsertAuditLogParams) (int64, error) {
	s, unlock, err := q.begin("InsertAuditLog")
	if err != nil {
		return 0, err
	}
	defer unlock()
	entry := models.AuditEntry{
		ID:         int64(len(s.audit) + 1),
		EntityType: arg.EntityType,
		EntityID:   arg.EntityID,
		ActorID:    arg.ActorID,
		Action:     arg.Action,
		PrevState:  arg.PrevState,
		NextState:  arg.NextState,
		Metadata:   arg.Metadata,
		CreatedAt:  q.store.Now(),
	}
	s.audit = append(s.audit, entry)
	return entry.ID, nil
}

func (q *querier) ListAuditLog(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.AuditEntry, error) {
	s, unlock, err := q.begin("ListAuditLog")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var entries []models.AuditEntry
	for _, e := range s.audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (q *querier) GetIdempotencyKey(ctx context.Context, key string) (repository.IdempotencyKey, error) {
	s, unlock, err := q.begin("GetIdempotencyKey")
	if err != nil {
		return repository.IdempotencyKey{}, err
	}
	defer unlock()
	row, ok := s.idempotency[key]
	if !ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	return row, nil
}

func (q *querier) ReserveIdempotencyKey(ctx context.Context, arg repository.ReserveIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	s, unlock, err := q.begin("ReserveIdempotencyKey")
	if err != nil {
		return repository.IdempotencyKey{}, err
	}
	defer unlock()
	if _, ok := s.idempotency[arg.IdempotencyKey]; ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	now := q.store.Now()
	row := repository.IdempotencyKey{
		IdempotencyKey: arg.IdempotencyKey,
		RequestHash:    arg.RequestHash,
		Method:         arg.Method,
		Path:           arg.Path,
		ContentType:    "application/json",
		InProgress:     true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.idempotency[arg.IdempotencyKey] = row
	return row, nil
}

func (q *querier) FinalizeIdempotencyKey(ctx context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	s, unlock, err := q.begin("FinalizeIdempotencyKey")
	if err != nil {
		return repository.IdempotencyKey{}, err
	}
	defer unlock()
	row, ok := s.idempotency[arg.IdempotencyKey]
	if !ok || row.RequestHash != arg.RequestHash {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	row.ResponseStatus = arg.ResponseStatus
	row.ResponseBody = append([]byte(nil), arg.ResponseBody...)
	row.ContentType = arg.ContentType
	row.InProgress = false
	row.UpdatedAt = q.store.Now()
	s.idempotency[arg.IdempotencyKey] = row
	return row, nil
}

func (q *querier) DeleteInProgressIdempotencyKey(ctx context.Context, key, requestHash string) (int64, error) {
	s, unlock, err := q.begin("DeleteInProgressIdempotencyKey")
	if err != nil {
		return 0, err
	}
	defer unlock()
	row, ok := s.idempotency[key]
	if !ok || !row.InProgress || row.RequestHash != requestHash {
		return 0, nil
	}
	delete(s.idempotency, key)
	return 1, nil
}

func (q *querier) ListPoolDiscrepancies(ctx context.Context) ([]repository.PoolDiscrepancy, error) {
	s, unlock, err := q.begin("ListPoolDiscrepancies")
	if err != nil {
		return nil, err
	}
	defer unlock()
	sums := map[uuid.UUID][2]int64{}
	for _, b := range s.bets {
		if b.Status == domain.BetStatusVoided {
			continue
		}
		v := sums[b.MarketID]
		if b.Outcome == domain.OutcomeA {
			v[0] += b.Amount
		} else {
			v[1] += b.Amount
		}
		sums[b.MarketID] = v
	}
	var out []repository.PoolDiscrepancy
	for _, id := range sortedMarketIDs(s) {
		m := s.markets[id]
		v := sums[id]
		if m.PoolA != v[0] {
			out = append(out, repository.PoolDiscrepancy{MarketID: id, Outcome: domain.OutcomeA, PoolTotal: m.PoolA, BetTotal: v[0]})
		}
		if m.PoolB != v[1] {
			out = append(out, repository.PoolDiscrepancy{MarketID: id, Outcome: domain.OutcomeB, PoolTotal: m.PoolB, BetTotal: v[1]})
		}
	}
	return out, nil
}

func (q *querier) ListOverpaidMarkets(ctx context.Context) ([]repository.OverpaidMarket, error) {
	s, unlock, err := q.begin("ListOverpaidMarkets")
	if err != nil {
		return nil, err
	}
	defer unlock()
	paid := map[uuid.UUID]int64{}
	for _, b := range s.bets {
		if b.ActualPayout != nil {
			paid[b.MarketID] += *b.ActualPayout
		}
	}
	var out []repository.OverpaidMarket
	for _, id := range sortedMarketIDs(s) {
		m := s.markets[id]
		if m.Status != domain.MarketStatusSettled {
			continue
		}
		total := m.PoolA + m.PoolB + m.BonusPool
		if paid[id] > total {
			out = append(out, repository.OverpaidMarket{MarketID: id, TotalPool: total, TotalPaid: paid[id]})
		}
	}
	return out, nil
}

func (q *querier) ListSettledMarketsWithActiveBets(ctx context.Context) ([]uuid.UUID, error) {
	s, unlock, err := q.begin("ListSettledMarketsWithActiveBets")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var out []uuid.UUID
	for _, id := range sortedMarketIDs(s) {
		if s.markets[id].Status != domain.MarketStatusSettled {
			continue
		}
		for _, b := range s.bets {
			if b.MarketID == id && b.Status == domain.BetStatusActive {
				out = append(out, id)
				break
			}
		}
	}
	return out, nil
}

func sortedMarketIDs(s *state) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.markets))
	for id := range s.markets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return s.marketSeq[ids[i]] < s.marketSeq[ids[j]] })
	return ids
}

func page[T any](items []T, limit, offset int32) []T {
	if offset > 0 {
		if int(offset) >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
