package betting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PriceSource supplies the latest known price for an asset without blocking.
// Any error means no usable snapshot exists yet.
type PriceSource interface {
	LatestPrice(asset Asset) (decimal.Decimal, time.Time, error)
}

// Ledger is the external balance authority. All calls have a bounded-wait
// contract; implementations time out rather than hang.
type Ledger interface {
	Balance(ctx context.Context, account string) (decimal.Decimal, error)
	Debit(ctx context.Context, account string, amount decimal.Decimal) error
	Credit(ctx context.Context, account string, amount decimal.Decimal) error
	RecordBetWin(ctx context.Context, account string, amount decimal.Decimal, betID string) error
	RecordBetLoss(ctx context.Context, account string, amount decimal.Decimal, betID string) error
}

// SettlementRecorder persists settled bets for auditing. Optional.
type SettlementRecorder interface {
	RecordSettlement(ctx context.Context, bet Bet) error
}

// Events carries the callbacks the presentation layer hooks into.
type Events struct {
	OnBetCreated func(Bet)
	OnBetSettled func(Bet)
}

// Options tune engine behaviour.
type Options struct {
	// Durations is the permitted set of bet windows.
	Durations []time.Duration
	// PayoutMultiplier applied to the stake on a win.
	PayoutMultiplier decimal.Decimal
	// AlignWindows rounds bet expiry up to the next multiple of the window,
	// so all bets on the same window settle together.
	AlignWindows bool
}

var defaultDurations = []time.Duration{time.Minute, 15 * time.Minute}

// Engine validates and creates bets, arms their settlement timers, and
// resolves them against the price feed when their window elapses. A one-shot
// timer per bet and a sweep on every feed refresh feed the same idempotent
// settlement path; the registry's terminal-transition guard makes the
// redundancy harmless.
type Engine struct {
	registry *Registry
	prices   PriceSource
	ledger   Ledger
	history  SettlementRecorder
	events   Events
	opts     Options
	logger   zerolog.Logger

	now func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewEngine constructs the lifecycle engine. history may be nil.
func NewEngine(registry *Registry, prices PriceSource, ledger Ledger, history SettlementRecorder, events Events, opts Options, logger zerolog.Logger) *Engine {
	if len(opts.Durations) == 0 {
		opts.Durations = defaultDurations
	}
	if opts.PayoutMultiplier.Sign() <= 0 {
		opts.PayoutMultiplier = decimal.NewFromInt(2)
	}
	return &Engine{
		registry: registry,
		prices:   prices,
		ledger:   ledger,
		history:  history,
		events:   events,
		opts:     opts,
		logger:   logger.With().Str("component", "engine").Logger(),
		now:      time.Now,
		timers:   make(map[string]*time.Timer),
	}
}

// Place validates a bet request, debits the stake, registers the bet as
// ACTIVE, and arms its settlement timer. On any error nothing is persisted.
func (e *Engine) Place(ctx context.Context, account string, asset Asset, direction Direction, amount decimal.Decimal, duration time.Duration) (Bet, error) {
	if amount.Sign() <= 0 {
		return Bet{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if !e.permitted(duration) {
		return Bet{}, fmt.Errorf("%w: %s", ErrInvalidDuration, duration)
	}
	if direction != DirectionHigher && direction != DirectionLower {
		return Bet{}, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}

	// Point-in-time balance check, not a reservation. A race with a
	// concurrent debit surfaces later as a failed ledger call.
	balance, err := e.ledger.Balance(ctx, account)
	if err != nil {
		return Bet{}, fmt.Errorf("read balance: %w", err)
	}
	if amount.GreaterThan(balance) {
		return Bet{}, fmt.Errorf("%w: stake %s exceeds balance %s", ErrInsufficientBalance, amount, balance)
	}

	// The snapshot read and the insert must form one exclusive section so a
	// feed refresh cannot interleave with placement.
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return Bet{}, errors.New("engine closed")
	}

	startPrice, _, err := e.prices.LatestPrice(asset)
	if err != nil {
		return Bet{}, fmt.Errorf("%w: %s", ErrPriceUnavailable, asset)
	}

	start := e.now().UTC()
	end := start.Add(duration)
	if e.opts.AlignWindows {
		end = alignEnd(start, duration)
	}

	bet := Bet{
		ID:         uuid.NewString(),
		Asset:      asset,
		Account:    account,
		Direction:  direction,
		Amount:     amount,
		StartPrice: startPrice,
		Duration:   duration,
		StartTime:  start,
		EndTime:    end,
		Status:     StatusActive,
	}

	if err := e.ledger.Debit(ctx, account, amount); err != nil {
		return Bet{}, fmt.Errorf("debit stake: %w", err)
	}

	if err := e.registry.Insert(bet); err != nil {
		return Bet{}, err
	}

	e.armTimerLocked(bet.ID, end.Sub(start))

	e.logger.Info().
		Str("bet_id", bet.ID).
		Str("account", account).
		Str("asset", string(asset)).
		Str("direction", string(direction)).
		Str("amount", amount.String()).
		Time("end_time", end).
		Msg("bet placed")

	if e.events.OnBetCreated != nil {
		e.events.OnBetCreated(bet)
	}
	return bet, nil
}

// Settle resolves the bet against the latest price snapshot. Calling it on a
// bet that is not ACTIVE returns ErrInvalidTransition and changes nothing.
func (e *Engine) Settle(ctx context.Context, id string) error {
	bet, err := e.registry.Get(id)
	if err != nil {
		return err
	}
	if bet.Status != StatusActive {
		return fmt.Errorf("%w: bet %s already %s", ErrInvalidTransition, id, bet.Status)
	}

	endPrice, fetchedAt, err := e.prices.LatestPrice(bet.Asset)
	if err != nil {
		// A bet must never settle without a real snapshot; the next refresh
		// sweep retries.
		return fmt.Errorf("%w: no %s snapshot", ErrSettlementDeferred, bet.Asset)
	}

	// Equality is not an increase: a flat price resolves as LOWER.
	increased := endPrice.GreaterThan(bet.StartPrice)
	won := (bet.Direction == DirectionHigher && increased) ||
		(bet.Direction == DirectionLower && !increased)

	status := StatusLost
	if won {
		status = StatusWon
	}

	settled, err := e.registry.UpdateTerminal(id, endPrice, status)
	if err != nil {
		// Raced with the other trigger; it owns the result submission.
		return err
	}

	e.dropTimer(id)

	e.logger.Info().
		Str("bet_id", settled.ID).
		Str("account", settled.Account).
		Str("asset", string(settled.Asset)).
		Str("status", string(settled.Status)).
		Str("start_price", settled.StartPrice.String()).
		Str("end_price", settled.EndPrice.String()).
		Time("price_fetched_at", fetchedAt).
		Msg("bet settled")

	e.submitResult(ctx, settled)

	if e.history != nil {
		if err := e.history.RecordSettlement(ctx, settled); err != nil {
			e.logger.Error().Err(err).Str("bet_id", settled.ID).Msg("failed to persist settlement")
		}
	}

	if e.events.OnBetSettled != nil {
		e.events.OnBetSettled(settled)
	}
	return nil
}

// Sweep evaluates every ACTIVE bet whose window has elapsed. Invoked on each
// feed refresh, it catches bets whose dedicated timer was delayed or dropped.
func (e *Engine) Sweep(ctx context.Context, now time.Time) {
	for _, bet := range e.registry.ActiveBefore(now) {
		e.settleFromTrigger(ctx, bet.ID)
	}
}

// Close stops all pending settlement timers. Bets stay in the registry.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for id, timer := range e.timers {
		timer.Stop()
		delete(e.timers, id)
	}
}

// settleFromTrigger is the shared entry point for the timer and the sweep.
// Losing a settlement race or finding the bet gone is expected and silent;
// a deferred settlement waits for the next sweep.
func (e *Engine) settleFromTrigger(ctx context.Context, id string) {
	err := e.Settle(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotFound):
	case errors.Is(err, ErrSettlementDeferred):
		e.logger.Debug().Str("bet_id", id).Msg("settlement deferred until next refresh")
	default:
		e.logger.Error().Err(err).Str("bet_id", id).Msg("settlement attempt failed")
	}
}

// submitResult reports the outcome to the external ledger. Failures are
// logged but never roll back the terminal transition; the bet's own state is
// authoritative for the UI, reconciliation is the ledger's concern.
func (e *Engine) submitResult(ctx context.Context, bet Bet) {
	if bet.Status == StatusWon {
		payout := bet.Amount.Mul(e.opts.PayoutMultiplier)
		if err := e.ledger.Credit(ctx, bet.Account, payout); err != nil {
			e.logger.Error().Err(err).Str("bet_id", bet.ID).Msg("failed to credit payout")
		}
		if err := e.ledger.RecordBetWin(ctx, bet.Account, payout, bet.ID); err != nil {
			e.logger.Error().Err(err).Str("bet_id", bet.ID).Msg("failed to record win")
		}
		return
	}
	if err := e.ledger.RecordBetLoss(ctx, bet.Account, bet.Amount, bet.ID); err != nil {
		e.logger.Error().Err(err).Str("bet_id", bet.ID).Msg("failed to record loss")
	}
}

func (e *Engine) armTimerLocked(id string, in time.Duration) {
	if in < 0 {
		in = 0
	}
	e.timers[id] = time.AfterFunc(in, func() {
		e.dropTimer(id)
		e.settleFromTrigger(context.Background(), id)
	})
}

func (e *Engine) dropTimer(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if timer, ok := e.timers[id]; ok {
		timer.Stop()
		delete(e.timers, id)
	}
}

func (e *Engine) permitted(duration time.Duration) bool {
	for _, d := range e.opts.Durations {
		if d == duration {
			return true
		}
	}
	return false
}

// alignEnd rounds up to the next multiple of the window so concurrent bets on
// the same window share an expiry. An exact boundary moves to the next one.
func alignEnd(start time.Time, duration time.Duration) time.Time {
	return start.Truncate(duration).Add(duration)
}

// SetClock overrides the engine's time source. Test hook.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Recent exposes the registry history view, newest first.
func (e *Engine) Recent(n int) []Bet {
	return e.registry.Recent(n)
}
