// Package events carries market activity out of the service layer once the
// owning transaction has committed.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	TypeMarketSettled = "market.settled"
	TypeBetPlaced     = "bet.placed"

	// Channel is both the Redis pub/sub channel and the default Kafka topic.
	Channel = "market_events"
)

// Event is the envelope every publisher sends.
type Event struct {
	Type       string          `json:"type"`
	MarketID   uuid.UUID       `json:"market_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type MarketSettled struct {
	MarketID         uuid.UUID `json:"market_id"`
	WinningOutcome   string    `json:"winning_outcome"`
	TotalPool        int64     `json:"total_pool_micros"`
	WinningPool      int64     `json:"winning_pool_micros"`
	TotalPaid        int64     `json:"total_paid_micros"`
	Remainder        int64     `json:"remainder_micros"`
	PayoutsProcessed int       `json:"payouts_processed"`
	SettledAt        time.Time `json:"settled_at"`
}

type BetPlaced struct {
	BetID    uuid.UUID `json:"bet_id"`
	MarketID uuid.UUID `json:"market_id"`
	UserID   uuid.UUID `json:"user_id"`
	Outcome  string    `json:"outcome"`
	Amount   int64     `json:"amount_micros"`
	PoolA    int64     `json:"pool_a_micros"`
	PoolB    int64     `json:"pool_b_micros"`
}

func newEvent(eventType string, marketID uuid.UUID, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, MarketID: marketID, OccurredAt: at.UTC(), Data: data}, nil
}

func NewMarketSettled(p MarketSettled) (Event, error) {
	return newEvent(TypeMarketSettled, p.MarketID, p.SettledAt, p)
}

func NewBetPlaced(p BetPlaced, at time.Time) (Event, error) {
	return newEvent(TypeBetPlaced, p.MarketID, at, p)
}

// Decode parses an envelope produced by one of the publishers.
func Decode(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if e.Type == "" {
		return Event{}, errors.New("decode event: missing type")
	}
	return e, nil
}

// Publisher delivers events to some downstream. Implementations must be safe
// for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Fanout sends each event to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
