package service

import (
	"strings"

	"github.com/ayo6706/parimutuel-markets/internal/domain"
)

// settled is never a target here; only SettleMarket reaches it.
var marketTransitions = map[string]map[string]struct{}{
	domain.MarketStatusPending: {
		domain.MarketStatusActive: {},
		domain.MarketStatusLocked: {},
	},
	domain.MarketStatusActive: {
		domain.MarketStatusLocked: {},
	},
	domain.MarketStatusLocked: {
		domain.MarketStatusActive: {},
	},
	domain.MarketStatusSettled: {},
	domain.MarketStatusVoided:  {},
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func isKnownStatus(status string) bool {
	_, ok := marketTransitions[normalizeStatus(status)]
	return ok
}

func canTransition(current, next string) bool {
	nextStates, ok := marketTransitions[normalizeStatus(current)]
	if !ok {
		return false
	}
	_, ok = nextStates[normalizeStatus(next)]
	return ok
}
