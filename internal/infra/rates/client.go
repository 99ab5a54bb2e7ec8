// Package rates fetches USD-anchored exchange rates from an external
// JSON API and keeps the persisted cache warm.
//
// Only USD-based pairs are ever fetched; everything else is
// triangulated on demand by the allowance package. The core rate
// lookup never fetches — it flags NeedsRefresh, and this package is
// the component that consumes that flag.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hearthkeep/hearth/internal/app/allowance"
	"github.com/hearthkeep/hearth/internal/domain"
	"github.com/hearthkeep/hearth/internal/infra/observability"
	"github.com/hearthkeep/hearth/internal/infra/sqlite"
)

// Client talks to the exchange-rate API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a rate API client. baseURL should serve a JSON
// document of the form {"base":"USD","rates":{"EUR":0.91,...}}.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// FetchUSD retrieves the current USD-anchored rate table.
func (c *Client) FetchUSD(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch rates: unexpected status %d", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	if body.Base != allowance.AnchorCurrency {
		return nil, fmt.Errorf("fetch rates: expected base %s, got %q", allowance.AnchorCurrency, body.Base)
	}
	return body.Rates, nil
}

// ─── Refresher ──────────────────────────────────────────────────────────────

// Refresher periodically refreshes the persisted USD rate table.
type Refresher struct {
	client   *Client
	db       *sqlite.DB
	interval time.Duration
}

// NewRefresher wires a refresher. Interval zero disables periodic runs.
func NewRefresher(client *Client, db *sqlite.DB, interval time.Duration) *Refresher {
	return &Refresher{client: client, db: db, interval: interval}
}

// Run refreshes immediately and then on every tick until ctx ends.
func (r *Refresher) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// RefreshNow performs one refresh cycle.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	return r.refresh(ctx)
}

func (r *Refresher) refresh(ctx context.Context) error {
	table, err := r.client.FetchUSD(ctx)
	if err != nil {
		observability.RateRefreshes.WithLabelValues("error").Inc()
		log.Printf("rates: refresh failed: %v", err)
		return err
	}

	now := time.Now().UTC()
	for currency, rate := range table {
		entry := domain.ExchangeRate{
			Base:      allowance.AnchorCurrency,
			Target:    currency,
			Rate:      rate,
			FetchedAt: now,
		}
		if err := r.db.UpsertRate(entry); err != nil {
			observability.RateRefreshes.WithLabelValues("error").Inc()
			return fmt.Errorf("store rate %s: %w", currency, err)
		}
	}

	observability.RateRefreshes.WithLabelValues("ok").Inc()
	observability.CachedPairs.Set(float64(len(table)))
	log.Printf("rates: refreshed %d USD pairs", len(table))
	return nil
}
