package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"price-action-bets/internal/betting"
)

// Notifier delivers settlement outcomes to an out-of-band channel.
type Notifier interface {
	NotifySettlement(ctx context.Context, bet betting.Bet) error
}

// TelegramNotifier pushes settlement messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs the Telegram channel.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "notify_telegram").Logger(),
	}
}

// NotifySettlement sends the outcome via the sendMessage API.
func (n *TelegramNotifier) NotifySettlement(ctx context.Context, bet betting.Bet) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(bet),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("bet_id", bet.ID).
		Str("status", string(bet.Status)).
		Msg("settlement notification sent")
	return nil
}

func renderMessage(bet betting.Bet) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[Price Action] %s %s\n", bet.Asset, bet.Status))
	builder.WriteString(fmt.Sprintf("Account: %s\n", bet.Account))
	builder.WriteString(fmt.Sprintf("Direction: %s over %s\n", bet.Direction, bet.Duration))
	builder.WriteString(fmt.Sprintf("Start: %s  End: %s\n", bet.StartPrice.StringFixed(2), bet.EndPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Change: %s%%\n", bet.PriceChangePct().StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Stake: %s\n", bet.Amount.String()))
	builder.WriteString(fmt.Sprintf("Settled: %s UTC\n", bet.EndTime.UTC().Format(time.RFC3339)))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
