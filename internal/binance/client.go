// Package binance fetches candle history over REST and follows live
// closed candles over the kline websocket stream.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"signal-sweep-lab/internal/domain"
)

// DefaultBaseURL is the USD-M futures REST endpoint.
const DefaultBaseURL = "https://fapi.binance.com"

// maxKlinesPerRequest is the server-side page limit.
const maxKlinesPerRequest = 1000

// Client is a REST client for Binance kline history.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client. An empty baseURL selects the default.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Klines fetches candles for [start, end] (Unix ms, inclusive) at the
// given interval, paginating until the range is covered. Results are
// ordered by open time ascending.
func (c *Client) Klines(ctx context.Context, symbol, interval string, start, end int64) ([]domain.Candle, error) {
	var all []domain.Candle

	cursor := start
	for cursor <= end {
		page, err := c.klinesPage(ctx, symbol, interval, cursor, end)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)

		last := page[len(page)-1].OpenTime
		if last <= cursor {
			break
		}
		cursor = last + 1
	}

	return all, nil
}

func (c *Client) klinesPage(ctx context.Context, symbol, interval string, start, end int64) ([]domain.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(start, 10))
	q.Set("endTime", strconv.FormatInt(end, 10))
	q.Set("limit", strconv.Itoa(maxKlinesPerRequest))

	reqURL := fmt.Sprintf("%s/fapi/v1/klines?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build klines request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read klines response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("klines request failed: status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	return parseKlines(body)
}

// parseKlines decodes the kline array-of-arrays payload. Each row is
// [openTime, open, high, low, close, volume, closeTime, ...] with the
// prices as strings.
func parseKlines(body []byte) ([]domain.Candle, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode klines payload: %w", err)
	}

	candles := make([]domain.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("kline row %d: %w", i, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func parseKlineRow(row []json.RawMessage) (domain.Candle, error) {
	if len(row) < 6 {
		return domain.Candle{}, fmt.Errorf("want at least 6 fields, got %d", len(row))
	}

	var c domain.Candle
	if err := json.Unmarshal(row[0], &c.OpenTime); err != nil {
		return domain.Candle{}, fmt.Errorf("open time: %w", err)
	}

	fields := []struct {
		name string
		dst  *float64
		raw  json.RawMessage
	}{
		{"open", &c.Open, row[1]},
		{"high", &c.High, row[2]},
		{"low", &c.Low, row[3]},
		{"close", &c.Close, row[4]},
		{"volume", &c.Volume, row[5]},
	}
	for _, f := range fields {
		var s string
		if err := json.Unmarshal(f.raw, &s); err != nil {
			return domain.Candle{}, fmt.Errorf("%s: %w", f.name, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}

	return c, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
