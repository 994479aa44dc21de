package fxrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedQuote is returned when a provider response has no usable rate.
var ErrMalformedQuote = errors.New("fxrate: malformed quote")

// Provider fetches a USD to local-currency rate for a date.
type Provider interface {
	Name() string
	Rate(ctx context.Context, date time.Time) (float64, error)
}

// HTTPProvider reads a rate from a JSON endpoint. URL may contain a {date}
// placeholder (YYYY-MM-DD); Path is the dotted location of the rate in the
// response body, e.g. "rates.CNY".
type HTTPProvider struct {
	ProviderName string
	URL          string
	Path         string
	Client       *http.Client
}

// NewHTTPProvider constructs a provider using http.DefaultClient.
func NewHTTPProvider(name, url, path string) *HTTPProvider {
	return &HTTPProvider{ProviderName: name, URL: url, Path: path, Client: http.DefaultClient}
}

// Name returns the source label reported with resolved rates.
func (p *HTTPProvider) Name() string {
	return p.ProviderName
}

// Rate performs one GET against the provider.
func (p *HTTPProvider) Rate(ctx context.Context, date time.Time) (float64, error) {
	endpoint := strings.ReplaceAll(p.URL, "{date}", date.Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("fxrate: %s returned status %d", p.ProviderName, resp.StatusCode)
	}
	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedQuote, err)
	}
	return lookup(body, p.Path)
}

func lookup(body any, path string) (float64, error) {
	node := body
	for _, key := range strings.Split(path, ".") {
		obj, ok := node.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("%w: %q not an object", ErrMalformedQuote, key)
		}
		node, ok = obj[key]
		if !ok {
			return 0, fmt.Errorf("%w: missing %q", ErrMalformedQuote, key)
		}
	}
	var rate float64
	switch v := node.(type) {
	case float64:
		rate = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformedQuote, err)
		}
		rate = parsed
	default:
		return 0, fmt.Errorf("%w: %s is %T", ErrMalformedQuote, path, node)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("%w: non-positive rate %v", ErrMalformedQuote, rate)
	}
	return rate, nil
}
