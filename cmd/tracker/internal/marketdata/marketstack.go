package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

const marketstackSource = "marketstack"

// Compile-time check to ensure Marketstack implements Client
var _ Client = (*Marketstack)(nil)

// Marketstack queries the end-of-day latest endpoint of marketstack.com for all symbols at once.
type Marketstack struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewMarketstack(baseURL, apiKey string, timeout time.Duration) *Marketstack {
	return &Marketstack{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (m *Marketstack) Name() string { return marketstackSource }

type marketstackResponse struct {
	Data []struct {
		Symbol string   `json:"symbol"`
		Close  *float64 `json:"close"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (m *Marketstack) Fetch(ctx context.Context, symbols []models.Symbol) ([]models.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = string(s)
	}
	q := url.Values{}
	q.Set("access_key", m.apiKey)
	q.Set("symbols", strings.Join(names, ","))
	addr := m.baseURL + "/v1/eod/latest?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, fetchErr(marketstackSource, "build request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fetchErr(marketstackSource, "HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchErr(marketstackSource, "body read error: %w", err)
	}

	// error bodies are JSON too, but a proxy may answer with anything
	var payload marketstackResponse
	parseErr := json.Unmarshal(body, &payload)
	if parseErr == nil && payload.Error != nil {
		return nil, fetchErr(marketstackSource, "API error %s: %s", payload.Error.Code, payload.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fetchErr(marketstackSource, "cannot http GET %s: %s", req.URL.Path, resp.Status)
	}
	if parseErr != nil {
		return nil, fetchErr(marketstackSource, "JSON parse error: %w", parseErr)
	}

	quotes := make([]models.Quote, 0, len(payload.Data))
	for _, d := range payload.Data {
		if d.Close == nil {
			continue
		}
		quotes = append(quotes, models.Quote{Symbol: models.NormalizeSymbol(d.Symbol), Price: *d.Close})
	}
	return quotes, nil
}

func (m *Marketstack) String() string {
	return fmt.Sprintf("marketstack(%s)", m.baseURL)
}
