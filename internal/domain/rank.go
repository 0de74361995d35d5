package domain

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// RankTier is a labeled bracket starting at MinPoints.
type RankTier struct {
	MinPoints int64
	Label     string
}

// RankTable is sorted by MinPoints ascending and starts at zero.
type RankTable []RankTier

// DefaultRankTable is the 12-tier leaderboard ladder.
var DefaultRankTable = RankTable{
	{MinPoints: 0, Label: "Rookie"},
	{MinPoints: 100, Label: "Bronze"},
	{MinPoints: 500, Label: "Silver"},
	{MinPoints: 1_000, Label: "Gold"},
	{MinPoints: 2_500, Label: "Platinum"},
	{MinPoints: 5_000, Label: "Diamond"},
	{MinPoints: 10_000, Label: "Master"},
	{MinPoints: 25_000, Label: "Grandmaster"},
	{MinPoints: 50_000, Label: "Champion"},
	{MinPoints: 100_000, Label: "Legend"},
	{MinPoints: 250_000, Label: "Mythic"},
	{MinPoints: 500_000, Label: "Obsidian"},
}

// Validate checks ordering and the zero floor.
func (t RankTable) Validate() error {
	if len(t) == 0 {
		return errors.New("rank table is empty")
	}
	if t[0].MinPoints != 0 {
		return fmt.Errorf("lowest rank %q must start at 0 points", t[0].Label)
	}
	for i := 1; i < len(t); i++ {
		if t[i].MinPoints <= t[i-1].MinPoints {
			return fmt.Errorf("rank %q is not above %q", t[i].Label, t[i-1].Label)
		}
	}
	return nil
}

// Lookup returns the label of the highest tier whose floor is <= points.
func (t RankTable) Lookup(points int64) string {
	i := sort.Search(len(t), func(i int) bool { return t[i].MinPoints > points })
	if i == 0 {
		return t[0].Label
	}
	return t[i-1].Label
}

// RankPolicy turns cumulative wagered/won totals into rank points.
// points = floor(wagered * WagerWeight) + floor(won * WinWeight), in whole units.
type RankPolicy struct {
	Table       RankTable
	WagerWeight decimal.Decimal
	WinWeight   decimal.Decimal
}

// NewRankPolicy builds a policy over the default table.
func NewRankPolicy(wagerWeight, winWeight float64) (*RankPolicy, error) {
	if wagerWeight < 0 || winWeight < 0 {
		return nil, errors.New("rank weights must not be negative")
	}
	p := &RankPolicy{
		Table:       DefaultRankTable,
		WagerWeight: decimal.NewFromFloat(wagerWeight),
		WinWeight:   decimal.NewFromFloat(winWeight),
	}
	return p, p.Table.Validate()
}

// DefaultRankPolicy awards one point per unit wagered and five per unit won.
func DefaultRankPolicy() *RankPolicy {
	p, _ := NewRankPolicy(1, 5)
	return p
}

// Points computes rank points from micros totals.
func (p *RankPolicy) Points(totalWagered, totalWon int64) int64 {
	wagered := NewMoney(totalWagered).ToDecimal().Mul(p.WagerWeight).Floor()
	won := NewMoney(totalWon).ToDecimal().Mul(p.WinWeight).Floor()
	return wagered.IntPart() + won.IntPart()
}

// Derive returns the points and label for the given totals.
func (p *RankPolicy) Derive(totalWagered, totalWon int64) (int64, string) {
	points := p.Points(totalWagered, totalWon)
	return points, p.Table.Lookup(points)
}
