// Package gateway is the boundary to the external payment processor: it
// opens payment intents and verifies webhook signatures.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/ariefcatur/go-pos-settlement.git/internal/pos"
)

type Config struct {
	BaseURL          string
	KeyID            string
	Secret           string
	Currency         string
	CurrencyExponent int   // decimal places of the processor's minor unit
	MinAmountMinor   int64 // smallest transactable amount, in minor units
	Timeout          time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

type intentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type intentResponse struct {
	ID string `json:"id"`
}

// CreateIntent opens a payment intent for amountCents and returns the
// processor's order id. Transport failures, timeouts and non-2xx responses
// all classify as ExternalServiceError; the caller compensates.
func (c *Client) CreateIntent(ctx context.Context, amountCents int64, receiptID string) (string, error) {
	if amountCents <= 0 {
		return "", pos.Errf(pos.KindValidation, "intent amount must be positive, got %d", amountCents)
	}

	amount := MinorUnits(amountCents, c.cfg.CurrencyExponent)
	if amount < c.cfg.MinAmountMinor {
		amount = c.cfg.MinAmountMinor
	}

	body, err := json.Marshal(intentRequest{
		Amount:   amount,
		Currency: c.cfg.Currency,
		Receipt:  receiptID,
	})
	if err != nil {
		return "", pos.WrapErr(pos.KindInternal, "encode intent request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", pos.WrapErr(pos.KindInternal, "build intent request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.Secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pos.WrapErr(pos.KindExternal, "payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", pos.Errf(pos.KindExternal, "payment gateway returned status %d", resp.StatusCode)
	}

	var out intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", pos.WrapErr(pos.KindExternal, "decode gateway response", err)
	}
	if out.ID == "" {
		return "", pos.Errf(pos.KindExternal, "gateway response missing order id")
	}
	return out.ID, nil
}

// MinorUnits converts an amount in cents to the processor's minor unit,
// rounding half away from zero. Exponent 2 is the identity.
func MinorUnits(amountCents int64, exponent int) int64 {
	if exponent == 2 {
		return amountCents
	}
	scale := math.Pow10(exponent - 2)
	return int64(math.Round(float64(amountCents) * scale))
}

func (c *Client) String() string {
	return fmt.Sprintf("gateway(%s %s)", c.cfg.BaseURL, c.cfg.Currency)
}
