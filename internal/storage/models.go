package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement is a persisted record of a settled bet. The registry remains
// the source of truth for live state; this table exists for auditing and the
// show command.
type Settlement struct {
	BetID      string
	Account    string
	Asset      string
	Direction  string
	Amount     decimal.Decimal
	StartPrice decimal.Decimal
	EndPrice   decimal.Decimal
	Duration   time.Duration
	StartTime  time.Time
	EndTime    time.Time
	Status     string
	CreatedAt  time.Time
}
