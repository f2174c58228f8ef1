package nansen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/walletrank/walletrank/internal/config"
	"github.com/walletrank/walletrank/internal/metrics"
	"github.com/walletrank/walletrank/internal/ratelimit"
)

const (
	scoringWindowDays   = 180
	walletAgeWindowDays = 365
	perPage             = 100
	maxTxPages          = 10
	maxPnLPages         = 10
	maxBalancePages     = 5
)

// ProviderError wraps any failure talking to the profiler API so callers can
// distinguish provider outages from domain errors.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("nansen: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Client handles communication with the Nansen profiler API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewClient creates a new profiler API client.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.NansenAPIBaseURL,
		apiKey:     cfg.NansenAPIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    ratelimit.New(cfg.NansenAPIRPS),
	}
}

// FetchDataset fetches and normalizes everything the scoring engine consumes:
// transactions and PnL over the scoring window, current balances, wallet age
// from a wider window, the swap subset and the closed-position subset.
func (c *Client) FetchDataset(ctx context.Context, address string) (*Dataset, error) {
	now := time.Now().UTC()
	scoringFrom := now.AddDate(0, 0, -scoringWindowDays)
	ageFrom := now.AddDate(0, 0, -walletAgeWindowDays)

	transactions, err := c.fetchTransactions(ctx, address, scoringFrom, now)
	if err != nil {
		return nil, &ProviderError{Op: "fetch transactions", Err: err}
	}

	summary, err := c.fetchPnLSummary(ctx, address, scoringFrom, now)
	if err != nil {
		return nil, &ProviderError{Op: "fetch pnl summary", Err: err}
	}

	details, err := c.fetchPnLDetails(ctx, address, scoringFrom, now)
	if err != nil {
		return nil, &ProviderError{Op: "fetch pnl details", Err: err}
	}

	balances, err := c.fetchBalances(ctx, address)
	if err != nil {
		return nil, &ProviderError{Op: "fetch balances", Err: err}
	}

	ageTxs, err := c.fetchTransactions(ctx, address, ageFrom, now)
	if err != nil {
		return nil, &ProviderError{Op: "fetch age window transactions", Err: err}
	}

	ds := &Dataset{
		Address:      strings.ToLower(address),
		Transactions: transactions,
		PnLSummary:   summary,
		PnLDetails:   details,
		Balances:     balances,
	}

	var first time.Time
	for i := range ageTxs {
		ts := ageTxs[i].Time()
		if ts.IsZero() {
			continue
		}
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
	}
	if !first.IsZero() {
		ds.FirstTransactionDate = &first
		ds.WalletAgeDays = int(now.Sub(first).Hours() / 24)
	}

	for i := range transactions {
		if isSwap(&transactions[i]) {
			ds.Swaps = append(ds.Swaps, transactions[i])
		}
	}

	assets := make(map[string]struct{})
	for i := range transactions {
		for _, tr := range transactions[i].TokensSent {
			assets[strings.ToLower(tr.TokenAddress)] = struct{}{}
		}
		for _, tr := range transactions[i].TokensReceived {
			assets[strings.ToLower(tr.TokenAddress)] = struct{}{}
		}
	}
	ds.DistinctAssets = len(assets)

	for i := range details {
		if details[i].SoldAmount > 0 {
			ds.ClosedPositions = append(ds.ClosedPositions, details[i])
		}
	}

	return ds, nil
}

// isSwap classifies DEX-like activity: explicit dex/swap source types, or any
// transaction that both sends and receives tokens.
func isSwap(tx *Transaction) bool {
	source := strings.ToLower(tx.SourceType)
	if strings.Contains(source, "dex") || strings.Contains(source, "swap") {
		return true
	}
	return len(tx.TokensSent) > 0 && len(tx.TokensReceived) > 0
}

func (c *Client) fetchTransactions(ctx context.Context, address string, from, to time.Time) ([]Transaction, error) {
	var all []Transaction
	for page := 1; page <= maxTxPages; page++ {
		body := map[string]any{
			"address": address,
			"chain":   "ethereum",
			"date": map[string]string{
				"from": from.Format(time.RFC3339),
				"to":   to.Format(time.RFC3339),
			},
			"hide_spam_token": true,
			"pagination":      map[string]int{"page": page, "per_page": perPage},
		}

		var resp transactionsResponse
		if err := c.post(ctx, "/profiler/address/transactions", body, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
		if resp.Pagination.IsLastPage {
			break
		}
	}
	return all, nil
}

func (c *Client) fetchPnLSummary(ctx context.Context, address string, from, to time.Time) (*PnLSummary, error) {
	body := map[string]any{
		"address": address,
		"chain":   "ethereum",
		"date": map[string]string{
			"from": from.Format("2006-01-02"),
			"to":   to.Format("2006-01-02"),
		},
	}

	var summary PnLSummary
	if err := c.post(ctx, "/profiler/address/pnl-summary", body, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) fetchPnLDetails(ctx context.Context, address string, from, to time.Time) ([]PnLDetail, error) {
	var all []PnLDetail
	for page := 1; page <= maxPnLPages; page++ {
		body := map[string]any{
			"address": address,
			"chain":   "ethereum",
			"date": map[string]string{
				"from": from.Format("2006-01-02"),
				"to":   to.Format("2006-01-02"),
			},
			"pagination": map[string]int{"page": page, "per_page": perPage},
		}

		var resp pnlResponse
		if err := c.post(ctx, "/profiler/address/pnl", body, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
		if resp.Pagination.IsLastPage {
			break
		}
	}
	return all, nil
}

func (c *Client) fetchBalances(ctx context.Context, address string) ([]Balance, error) {
	var all []Balance
	for page := 1; page <= maxBalancePages; page++ {
		body := map[string]any{
			"address":         address,
			"chain":           "ethereum",
			"hide_spam_token": true,
			"pagination":      map[string]int{"page": page, "per_page": perPage},
		}

		var resp balancesResponse
		if err := c.post(ctx, "/profiler/address/current-balance", body, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
		if resp.Pagination.IsLastPage {
			break
		}
	}
	return all, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apiKey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordProviderRequest(endpoint, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("401 Unauthorized - check NANSEN_API_KEY")
	}

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
