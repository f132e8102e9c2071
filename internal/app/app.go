package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-action-bets/internal/betting"
	"price-action-bets/internal/config"
	"price-action-bets/internal/ledger"
	"price-action-bets/internal/notify"
	"price-action-bets/internal/pricefeed"
	"price-action-bets/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) trackedAssets() []betting.Asset {
	assets := make([]betting.Asset, 0, len(a.Config.Feed.Assets))
	for _, name := range a.Config.Feed.Assets {
		assets = append(assets, betting.Asset(name))
	}
	return assets
}

func (a *App) newFeed() *pricefeed.Feed {
	source := pricefeed.NewCoinGecko(pricefeed.CoinGeckoOptions{
		BaseURL:   a.Config.Feed.BaseURL,
		Timeout:   a.Config.Feed.RequestTimeout,
		UserAgent: a.Config.Feed.UserAgent,
	}, a.Logger)

	return pricefeed.NewFeed(source, a.trackedAssets(), a.Config.Feed.Interval, a.Logger)
}

func (a *App) newLedger() *ledger.Client {
	return ledger.New(ledger.Options{
		BaseURL:   a.Config.Ledger.BaseURL,
		Timeout:   a.Config.Ledger.RequestTimeout,
		UserAgent: a.Config.Ledger.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() notify.Notifier {
	if a.Config.Notify.Telegram.Enabled {
		cfg := a.Config.Notify.Telegram
		return notify.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) engineOptions() betting.Options {
	return betting.Options{
		Durations:        a.Config.Betting.Durations,
		PayoutMultiplier: decimal.NewFromFloat(a.Config.Betting.PayoutMultiplier),
		AlignWindows:     a.Config.Betting.AlignWindows,
	}
}

// newEngine wires the registry, feed, ledger, and optional history store into
// a lifecycle engine, and hooks the sweep into the feed refresh.
func (a *App) newEngine(feed *pricefeed.Feed, store *storage.Store, events betting.Events) *betting.Engine {
	registry := betting.NewRegistry(a.Config.Betting.HistorySize)

	var history betting.SettlementRecorder
	if store != nil {
		history = store
	}

	engine := betting.NewEngine(registry, feed, a.newLedger(), history, events, a.engineOptions(), a.Logger)

	feed.OnRefresh(func(ctx context.Context, at time.Time) {
		engine.Sweep(ctx, at)
	})

	return engine
}

// Run executes the long-running betting service: price feed loop, settlement
// sweeps, and notifications.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; settlement history disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	notifier := a.newNotifier()

	events := betting.Events{
		OnBetSettled: func(bet betting.Bet) {
			if notifier == nil {
				return
			}
			notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer notifyCancel()
			if err := notifier.NotifySettlement(notifyCtx, bet); err != nil {
				a.Logger.Error().Err(err).Str("bet_id", bet.ID).Msg("failed to dispatch settlement notification")
			}
		},
	}

	feed := a.newFeed()
	engine := a.newEngine(feed, store, events)
	defer engine.Close()

	a.Logger.Info().Msg("starting betting service")
	err = feed.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("betting service stopped")
	return nil
}

// PlaceOptions hold parameters for the one-shot place command.
type PlaceOptions struct {
	Account   string
	Asset     string
	Direction string
	Amount    float64
	Duration  time.Duration
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Account string
	Limit   int
}
