package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Feed returns the latest reference rates keyed by currency code, each
// expressed as units of that currency per 1 reference unit.
type Feed interface {
	Fetch(ctx context.Context) (map[string]decimal.Decimal, error)
}

var ErrMissingReference = errors.New("feed has no rate for the reference currency")

type feedResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// HTTPFeed reads {"base": "USD", "rates": {"CHF": 0.88, ...}} documents and
// rebases them onto Reference.
type HTTPFeed struct {
	URL       string
	Reference string
	Client    *http.Client
}

func NewHTTPFeed(url, reference string) *HTTPFeed {
	return &HTTPFeed{
		URL:       url,
		Reference: NormalizeCode(reference),
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *HTTPFeed) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate feed returned %s", resp.Status)
	}

	var body feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding rates: %w", err)
	}

	return rebase(body, f.Reference)
}

func rebase(body feedResponse, reference string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal, len(body.Rates)+1)
	base := NormalizeCode(body.Base)
	for code, rate := range body.Rates {
		rates[NormalizeCode(code)] = rate
	}
	if base != "" {
		rates[base] = decimal.NewFromInt(1)
	}

	ref, ok := rates[reference]
	if !ok || !ref.IsPositive() {
		return nil, ErrMissingReference
	}
	if base == reference {
		return rates, nil
	}

	rebased := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		if !rate.IsPositive() {
			continue
		}
		rebased[code] = rate.Div(ref)
	}
	return rebased, nil
}
