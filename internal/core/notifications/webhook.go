// Package notifications delivers completion webhooks. Delivery is best
// effort: failures are logged and never fail the triggering request.
package notifications

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wattlebank/wattle/internal/core/domain"
)

// Notifier posts signed JSON events to a configured endpoint.
type Notifier struct {
	url    string
	secret string
	client *http.Client
}

// New returns nil when no webhook URL is configured, which callers treat as
// notifications disabled.
func New(url, secret string) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// TransactionCompleted fires a transaction.completed event in the background.
func (n *Notifier) TransactionCompleted(tx *domain.Transaction) {
	payload := map[string]interface{}{
		"event": "transaction.completed",
		"data": map[string]interface{}{
			"id":        tx.ID,
			"type":      tx.Type,
			"amount":    domain.FormatAmount(tx.Amount),
			"currency":  tx.Currency,
			"status":    tx.Status,
			"timestamp": time.Now(),
		},
	}
	go func() {
		if err := n.send(payload); err != nil {
			slog.Error("webhook delivery failed", "error", err, "transaction", tx.ID)
		} else {
			slog.Info("webhook delivered", "transaction", tx.ID)
		}
	}()
}

// send posts the payload with an HMAC-SHA256 signature header.
func (n *Notifier) send(payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Wattle-Webhook/1.0")
	req.Header.Set("X-Signature", Sign(jsonData, n.secret))

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
}

// Sign computes the hex HMAC-SHA256 receivers verify against.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
