// Package betting implements the live price-direction betting core: the bet
// model and state machine, the in-memory registry, and the lifecycle engine
// that validates, schedules, and settles wagers against the price feed.
package betting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset identifies a tracked market.
type Asset string

// Supported assets. The set is extensible; the feed decides what it tracks.
const (
	AssetBTC Asset = "BTC"
	AssetSOL Asset = "SOL"
)

// Direction is the predicted price movement over the bet window.
type Direction string

const (
	DirectionHigher Direction = "HIGHER"
	DirectionLower  Direction = "LOWER"
)

// Status models the bet state machine: ACTIVE -> {WON, LOST}. WON and LOST
// are terminal.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusWon    Status = "WON"
	StatusLost   Status = "LOST"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost
}

// Bet is a single wager on price direction over a fixed window.
//
// EndPrice is the zero decimal until the bet reaches a terminal state; Status
// is the authoritative signal, not EndPrice.
type Bet struct {
	ID         string
	Asset      Asset
	Account    string
	Direction  Direction
	Amount     decimal.Decimal
	StartPrice decimal.Decimal
	EndPrice   decimal.Decimal
	Duration   time.Duration
	StartTime  time.Time
	EndTime    time.Time
	Status     Status
}

// Due reports whether the bet's window has elapsed at the given instant.
func (b Bet) Due(now time.Time) bool {
	return !b.EndTime.After(now)
}

// Remaining returns the time left until expiry, clamped at zero. Intended for
// countdown display in the presentation layer.
func (b Bet) Remaining(now time.Time) time.Duration {
	if b.Due(now) {
		return 0
	}
	return b.EndTime.Sub(now)
}

// PriceChangePct returns the relative price move in percent, or the zero
// decimal while the bet is still active.
func (b Bet) PriceChangePct() decimal.Decimal {
	if !b.Status.Terminal() || b.StartPrice.IsZero() {
		return decimal.Decimal{}
	}
	return b.EndPrice.Sub(b.StartPrice).Div(b.StartPrice).Mul(decimal.NewFromInt(100))
}
