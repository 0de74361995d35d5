package domain

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyWinningPool = errors.New("winning pool is empty")
	ErrStakesExceedPool = errors.New("winning stakes exceed the winning pool")
	ErrNonPositiveStake = errors.New("stake must be positive")
	ErrNegativePool     = errors.New("pool must not be negative")
	ErrPoolOverflow     = errors.New("pool total overflows int64 micros")
)

// NormalizeOutcome upper-cases the input and reports whether it names one of
// the two market sides.
func NormalizeOutcome(s string) (string, bool) {
	o := strings.ToUpper(strings.TrimSpace(s))
	if o != OutcomeA && o != OutcomeB {
		return "", false
	}
	return o, true
}

// Pools are the per-outcome stake totals of a market plus any bonus.
type Pools struct {
	A     int64
	B     int64
	Bonus int64
}

// Total is the distributable amount: both sides and the bonus.
func (p Pools) Total() (int64, error) {
	if p.A < 0 || p.B < 0 || p.Bonus < 0 {
		return 0, ErrNegativePool
	}
	total, ok := addMicros(p.A, p.B)
	if ok {
		total, ok = addMicros(total, p.Bonus)
	}
	if !ok {
		return 0, ErrPoolOverflow
	}
	return total, nil
}

// addMicros adds two non-negative amounts and reports false on overflow.
func addMicros(a, b int64) (int64, bool) {
	if a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// Side returns the pool staked on outcome.
func (p Pools) Side(outcome string) int64 {
	if outcome == OutcomeA {
		return p.A
	}
	return p.B
}

// PariMutuelPayout returns stake/winningPool of totalPool, truncated toward
// zero. The product is computed exactly, so no intermediate rounding occurs.
func PariMutuelPayout(stake, totalPool, winningPool int64) (int64, error) {
	if winningPool <= 0 {
		return 0, ErrEmptyWinningPool
	}
	if stake <= 0 {
		return 0, ErrNonPositiveStake
	}
	q, _ := decimal.NewFromInt(stake).
		Mul(decimal.NewFromInt(totalPool)).
		QuoRem(decimal.NewFromInt(winningPool), 0)
	return q.IntPart(), nil
}

// Distribution is the outcome of splitting a market's pools across the
// winning stakes.
type Distribution struct {
	TotalPool   int64
	WinningPool int64
	Payouts     []int64 // same order as the stakes passed in
	TotalPaid   int64
	// Remainder is what truncation left unclaimed. Never negative.
	Remainder int64
}

// Distribute computes every winning stake's payout. The stakes must not
// exceed the winning pool; if they did, the payouts could exceed the total.
func Distribute(pools Pools, outcome string, winningStakes []int64) (Distribution, error) {
	winning := pools.Side(outcome)
	if winning <= 0 {
		return Distribution{}, ErrEmptyWinningPool
	}

	total, err := pools.Total()
	if err != nil {
		return Distribution{}, err
	}

	var staked int64
	for _, s := range winningStakes {
		if s <= 0 {
			return Distribution{}, ErrNonPositiveStake
		}
		var ok bool
		if staked, ok = addMicros(staked, s); !ok || staked > winning {
			return Distribution{}, ErrStakesExceedPool
		}
	}

	d := Distribution{
		TotalPool:   total,
		WinningPool: winning,
		Payouts:     make([]int64, len(winningStakes)),
	}
	for i, s := range winningStakes {
		p, err := PariMutuelPayout(s, d.TotalPool, winning)
		if err != nil {
			return Distribution{}, err
		}
		d.Payouts[i] = p
		d.TotalPaid += p
	}
	d.Remainder = d.TotalPool - d.TotalPaid
	return d, nil
}
