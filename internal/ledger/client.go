// Package ledger talks to the external ledger service that holds account
// balances and the authoritative bet audit trail. The core never owns this
// data; every call here is a thin remote-procedure wrapper with a bounded
// timeout and a typed failure.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

// ErrLedgerCall marks a failed ledger request: transport error, timeout, or a
// non-2xx response. Settlement-path callers log it and move on; the bet's own
// state stays authoritative.
var ErrLedgerCall = errors.New("ledger: call failed")

// Options parameterise the ledger client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client is the HTTP implementation of the ledger operations.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// New constructs a ledger client.
func New(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "ledger_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// Balance reads the account's current balance.
func (c *Client) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	var out struct {
		Balance decimal.Decimal `json:"balance"`
	}
	path := "/accounts/" + url.PathEscape(account) + "/balance"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return decimal.Decimal{}, err
	}
	return out.Balance, nil
}

type movementRequest struct {
	Account string          `json:"account"`
	Amount  decimal.Decimal `json:"amount"`
}

// Debit removes the stake from the account balance.
func (c *Client) Debit(ctx context.Context, account string, amount decimal.Decimal) error {
	return c.do(ctx, http.MethodPost, "/debit", movementRequest{Account: account, Amount: amount}, nil)
}

// Credit adds the payout to the account balance.
func (c *Client) Credit(ctx context.Context, account string, amount decimal.Decimal) error {
	return c.do(ctx, http.MethodPost, "/credit", movementRequest{Account: account, Amount: amount}, nil)
}

type resultRequest struct {
	Account string          `json:"account"`
	Amount  decimal.Decimal `json:"amount"`
	BetID   string          `json:"bet_id"`
}

// RecordBetWin appends a win record to the ledger audit trail.
func (c *Client) RecordBetWin(ctx context.Context, account string, amount decimal.Decimal, betID string) error {
	return c.do(ctx, http.MethodPost, "/bets/win", resultRequest{Account: account, Amount: amount, BetID: betID}, nil)
}

// RecordBetLoss appends a loss record to the ledger audit trail.
func (c *Client) RecordBetLoss(ctx context.Context, account string, amount decimal.Decimal, betID string) error {
	return c.do(ctx, http.MethodPost, "/bets/loss", resultRequest{Account: account, Amount: amount, BetID: betID}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: base url not configured", ErrLedgerCall)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: marshal request: %v", ErrLedgerCall, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerCall, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrLedgerCall, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: %s %s: http %d: %s", ErrLedgerCall, method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrLedgerCall, err)
		}
	}
	return nil
}

var _ betting.Ledger = (*Client)(nil)
