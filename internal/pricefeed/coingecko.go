package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-action-bets/internal/betting"
)

const simplePricePath = "/simple/price"

// coinGeckoIDs maps assets to CoinGecko coin identifiers.
var coinGeckoIDs = map[betting.Asset]string{
	betting.AssetBTC: "bitcoin",
	betting.AssetSOL: "solana",
}

// CoinGeckoOptions parameterise the CoinGecko source.
type CoinGeckoOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// CoinGecko fetches spot prices from the CoinGecko simple price API.
type CoinGecko struct {
	opts    CoinGeckoOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewCoinGecko constructs a CoinGecko price source.
func NewCoinGecko(opts CoinGeckoOptions, logger zerolog.Logger) *CoinGecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	return &CoinGecko{
		opts:    opts,
		logger:  logger.With().Str("component", "coingecko_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchPrices retrieves USD spot prices for the given assets. Missing or
// non-positive entries in the payload are treated as malformed data.
func (c *CoinGecko) FetchPrices(ctx context.Context, assets []betting.Asset) (map[betting.Asset]decimal.Decimal, error) {
	ids := make([]string, 0, len(assets))
	for _, asset := range assets {
		id, ok := coinGeckoIDs[asset]
		if !ok {
			return nil, fmt.Errorf("no coingecko id for asset %s", asset)
		}
		ids = append(ids, id)
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")

	endpoint := c.baseURL + simplePricePath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var body map[string]struct {
		USD decimal.Decimal `json:"usd"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("decode coingecko payload: %w", err)
	}

	prices := make(map[betting.Asset]decimal.Decimal, len(assets))
	for _, asset := range assets {
		entry, ok := body[coinGeckoIDs[asset]]
		if !ok || entry.USD.Sign() <= 0 {
			return nil, fmt.Errorf("coingecko payload missing price for %s", asset)
		}
		prices[asset] = entry.USD
	}
	return prices, nil
}

var _ Source = (*CoinGecko)(nil)
