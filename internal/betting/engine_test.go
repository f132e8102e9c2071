package betting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPrices struct {
	mu     sync.Mutex
	prices map[Asset]decimal.Decimal
	err    error
}

func (s *stubPrices) LatestPrice(asset Asset) (decimal.Decimal, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return decimal.Decimal{}, time.Time{}, s.err
	}
	price, ok := s.prices[asset]
	if !ok {
		return decimal.Decimal{}, time.Time{}, errors.New("no snapshot")
	}
	return price, time.Now(), nil
}

func (s *stubPrices) set(asset Asset, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	if s.prices == nil {
		s.prices = make(map[Asset]decimal.Decimal)
	}
	s.prices[asset] = price
}

func (s *stubPrices) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type resultCall struct {
	account string
	amount  decimal.Decimal
	betID   string
}

type stubLedger struct {
	mu         sync.Mutex
	balance    decimal.Decimal
	balanceErr error
	debitErr   error
	debits     []decimal.Decimal
	credits    []decimal.Decimal
	wins       []resultCall
	losses     []resultCall
}

func (l *stubLedger) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance, l.balanceErr
}

func (l *stubLedger) Debit(ctx context.Context, account string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.debitErr != nil {
		return l.debitErr
	}
	l.debits = append(l.debits, amount)
	return nil
}

func (l *stubLedger) Credit(ctx context.Context, account string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credits = append(l.credits, amount)
	return nil
}

func (l *stubLedger) RecordBetWin(ctx context.Context, account string, amount decimal.Decimal, betID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wins = append(l.wins, resultCall{account: account, amount: amount, betID: betID})
	return nil
}

func (l *stubLedger) RecordBetLoss(ctx context.Context, account string, amount decimal.Decimal, betID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.losses = append(l.losses, resultCall{account: account, amount: amount, betID: betID})
	return nil
}

func (l *stubLedger) submissions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.wins) + len(l.losses)
}

type fixture struct {
	engine   *Engine
	registry *Registry
	prices   *stubPrices
	ledger   *stubLedger
	clock    time.Time
}

func newFixture(t *testing.T, opts Options, events Events) *fixture {
	t.Helper()

	f := &fixture{
		registry: NewRegistry(0),
		prices:   &stubPrices{},
		ledger:   &stubLedger{balance: decimal.NewFromInt(1000)},
		clock:    time.Date(2024, 6, 1, 12, 3, 20, 0, time.UTC),
	}
	f.engine = NewEngine(f.registry, f.prices, f.ledger, nil, events, opts, zerolog.Nop())
	f.engine.SetClock(func() time.Time { return f.clock })
	t.Cleanup(f.engine.Close)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func TestPlaceCreatesActiveBet(t *testing.T) {
	f := newFixture(t, Options{}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))

	bet, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)

	assert.NotEmpty(t, bet.ID)
	assert.Equal(t, StatusActive, bet.Status)
	assert.True(t, bet.EndPrice.IsZero())
	assert.True(t, bet.StartPrice.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, bet.StartTime.Add(time.Minute), bet.EndTime)

	stored, err := f.registry.Get(bet.ID)
	require.NoError(t, err)
	assert.Equal(t, bet, stored)

	require.Len(t, f.ledger.debits, 1)
	assert.True(t, f.ledger.debits[0].Equal(decimal.NewFromInt(10)))
}

func TestPlaceRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t, Options{}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		_, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, amount, time.Minute)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	assert.Zero(t, f.registry.Len())
	assert.Empty(t, f.ledger.debits)
}

func TestPlaceRejectsInsufficientBalance(t *testing.T) {
	f := newFixture(t, Options{}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))
	f.ledger.balance = decimal.NewFromInt(5)

	_, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), time.Minute)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Zero(t, f.registry.Len())
}

func TestPlaceRejectsUnknownDuration(t *testing.T) {
	f := newFixture(t, Options{}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))

	_, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), 42*time.Second)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestPlaceRejectsUnknownDirection(t *testing.T) {
	f := newFixture(t, Options{}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))

	_, err := f.engine.Place(context.Background(), "alice", AssetBTC, Direction("SIDEWAYS"), decimal.NewFromInt(10), time.Minute)
	assert.ErrorIs(t, err, ErrInvalidDirection)
	assert.Zero(t, f.registry.Len())
}

func TestPlaceRequiresReferencePrice(t *testing.T) {
	f := newFixture(t, Options{}, Events{})

	_, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), time.Minute)
	assert.ErrorIs(t, err, ErrPriceUnavailable)
	assert.Zero(t, f.registry.Len())
}

func TestPlaceAbortsWhenDebitFails(t *testing.T) {
	f := newFixture(t, Options{}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))
	f.ledger.debitErr = errors.New("ledger down")

	_, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), time.Minute)
	require.Error(t, err)
	assert.Zero(t, f.registry.Len())
}

func TestSettleWinPaysDoubleStake(t *testing.T) {
	f := newFixture(t, Options{}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))

	bet, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)

	f.advance(time.Minute)
	f.prices.set(AssetBTC, decimal.NewFromInt(50001))

	require.NoError(t, f.engine.Settle(context.Background(), bet.ID))

	settled, err := f.registry.Get(bet.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusWon, settled.Status)
	assert.True(t, settled.EndPrice.Equal(decimal.NewFromInt(50001)))

	require.Len(t, f.ledger.credits, 1)
	assert.True(t, f.ledger.credits[0].Equal(decimal.NewFromInt(20)))
	require.Len(t, f.ledger.wins, 1)
	assert.True(t, f.ledger.wins[0].amount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, bet.ID, f.ledger.wins[0].betID)
	assert.Empty(t, f.ledger.losses)
}

func TestSettleLossRecordsStake(t *testing.T) {
	f := newFixture(t, Options{}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))

	bet, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)

	f.advance(time.Minute)
	f.prices.set(AssetBTC, decimal.NewFromInt(49999))

	require.NoError(t, f.engine.Settle(context.Background(), bet.ID))

	settled, err := f.registry.Get(bet.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusLost, settled.Status)

	assert.Empty(t, f.ledger.credits)
	require.Len(t, f.ledger.losses, 1)
	assert.True(t, f.ledger.losses[0].amount.Equal(decimal.NewFromInt(10)))
}

func TestSettleFlatPriceResolvesAsNotIncreased(t *testing.T) {
	f := newFixture(t, Options{}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))

	higher, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)
	lower, err := f.engine.Place(context.Background(), "bob", AssetBTC, DirectionLower, decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)

	f.advance(time.Minute)

	require.NoError(t, f.engine.Settle(context.Background(), higher.ID))
	require.NoError(t, f.engine.Settle(context.Background(), lower.ID))

	settledHigher, _ := f.registry.Get(higher.ID)
	settledLower, _ := f.registry.Get(lower.ID)
	assert.Equal(t, StatusLost, settledHigher.Status)
	assert.Equal(t, StatusWon, settledLower.Status)
}

func TestSettleDeferredWithoutSnapshot(t *testing.T) {
	f := newFixture(t, Options{}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))

	bet, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)

	f.advance(time.Minute)
	f.prices.fail(errors.New("feed down"))

	err = f.engine.Settle(context.Background(), bet.ID)
	assert.ErrorIs(t, err, ErrSettlementDeferred)

	still, err := f.registry.Get(bet.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, still.Status)
	assert.Zero(t, f.ledger.submissions())

	// Feed recovers; the next sweep settles it.
	f.prices.set(AssetBTC, decimal.NewFromInt(50002))
	f.engine.Sweep(context.Background(), f.clock)

	settled, err := f.registry.Get(bet.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusWon, settled.Status)
}

func TestSettleTwiceIsInvalidTransition(t *testing.T) {
	f := newFixture(t, Options{}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))

	bet, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)

	f.advance(time.Minute)
	f.prices.set(AssetBTC, decimal.NewFromInt(50001))

	require.NoError(t, f.engine.Settle(context.Background(), bet.ID))
	assert.ErrorIs(t, f.engine.Settle(context.Background(), bet.ID), ErrInvalidTransition)

	assert.Equal(t, 1, f.ledger.submissions())
}

func TestConcurrentTriggersSubmitOnce(t *testing.T) {
	f := newFixture(t, Options{}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))

	bet, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)

	f.advance(time.Minute)
	f.prices.set(AssetBTC, decimal.NewFromInt(50001))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.engine.Settle(context.Background(), bet.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.ledger.submissions())
}

func TestSweepOnlySettlesDueBets(t *testing.T) {
	f := newFixture(t, Options{}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))

	due, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionLower, decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)
	pending, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionLower, decimal.NewFromInt(10), 15*time.Minute)
	require.NoError(t, err)

	f.advance(time.Minute)
	f.engine.Sweep(context.Background(), f.clock)

	settledDue, _ := f.registry.Get(due.ID)
	stillPending, _ := f.registry.Get(pending.ID)
	assert.True(t, settledDue.Status.Terminal())
	assert.Equal(t, StatusActive, stillPending.Status)
}

func TestTimerTriggerSettles(t *testing.T) {
	settled := make(chan Bet, 1)
	opts := Options{Durations: []time.Duration{30 * time.Millisecond}}
	f := newFixture(t, opts, Events{OnBetSettled: func(b Bet) { settled <- b }})
	f.engine.SetClock(time.Now)
	f.prices.set(AssetSOL, decimal.NewFromInt(150))

	_, err := f.engine.Place(context.Background(), "alice", AssetSOL, DirectionLower, decimal.NewFromInt(1), 30*time.Millisecond)
	require.NoError(t, err)

	select {
	case bet := <-settled:
		assert.True(t, bet.Status.Terminal())
	case <-time.After(2 * time.Second):
		t.Fatal("timer trigger did not settle the bet")
	}
}

func TestRemovedBetIsNeverSettled(t *testing.T) {
	f := newFixture(t, Options{}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))

	bet, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)

	f.registry.Remove(bet.ID)
	f.advance(time.Minute)
	f.engine.Sweep(context.Background(), f.clock)

	assert.Zero(t, f.ledger.submissions())
	assert.ErrorIs(t, f.engine.Settle(context.Background(), bet.ID), ErrNotFound)
}

func TestAlignWindowsRoundsEndTimeUp(t *testing.T) {
	f := newFixture(t, Options{AlignWindows: true}, Events{})
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))

	// Clock is 12:03:20 UTC.
	minuteBet, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 4, 0, 0, time.UTC), minuteBet.EndTime)

	quarterBet, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 15, 0, 0, time.UTC), quarterBet.EndTime)
}

func TestEventsFireOnCreateAndSettle(t *testing.T) {
	var created, settledEvents []string
	events := Events{
		OnBetCreated: func(b Bet) { created = append(created, b.ID) },
		OnBetSettled: func(b Bet) { settledEvents = append(settledEvents, b.ID) },
	}
	f := newFixture(t, Options{}, events)
	f.prices.set(AssetBTC, decimal.NewFromInt(50000))

	bet, err := f.engine.Place(context.Background(), "alice", AssetBTC, DirectionHigher, decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)

	f.advance(time.Minute)
	require.NoError(t, f.engine.Settle(context.Background(), bet.ID))

	assert.Equal(t, []string{bet.ID}, created)
	assert.Equal(t, []string{bet.ID}, settledEvents)
}
