package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"memeatlas/internal/logger"
	"memeatlas/internal/metrics"
	"memeatlas/models"
)

// ipAPIResponse mirrors the fields of an ip-api.com JSON answer that we use.
type ipAPIResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	City       string `json:"city"`
	RegionName string `json:"regionName"`
	Country    string `json:"country"`
}

// HTTPProvider queries an ip-api.com compatible endpoint: GET <base><ip>.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider uses a client with a 5s timeout when client is nil.
func NewHTTPProvider(baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HTTPProvider{baseURL: baseURL, client: client}
}

func (p *HTTPProvider) Name() string { return "http" }

func (p *HTTPProvider) Lookup(ctx context.Context, ip string) (models.GeoLocation, error) {
	var zero models.GeoLocation
	u := p.baseURL + url.PathEscape(ip) + "?fields=status,message,city,regionName,country"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return zero, err
	}

	t0 := time.Now()
	resp, err := p.client.Do(req)
	metrics.GeoLookupDurationMs.WithLabelValues(p.Name()).Observe(float64(time.Since(t0).Milliseconds()))
	if err != nil {
		logger.L().Warn("geo_http_error", "ip", ip, "err", err)
		return zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return zero, &StatusError{Code: resp.StatusCode}
	}

	var r ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	logger.L().Debug("geo_http_resp", "ip", ip, "status", r.Status, "city", r.City, "region", r.RegionName, "country", r.Country)

	switch r.Status {
	case "success":
	case "fail":
		return zero, fmt.Errorf("%w: %s", ErrLookupFailed, r.Message)
	default:
		return zero, fmt.Errorf("%w: unexpected status %q", ErrMalformedResponse, r.Status)
	}

	return models.GeoLocation{IP: ip, City: r.City, Region: r.RegionName, Country: r.Country}, nil
}
