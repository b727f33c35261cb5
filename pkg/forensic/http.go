package forensic

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/velemoonkon/dnssentry/pkg/config"
	"github.com/velemoonkon/dnssentry/pkg/record"
)

// HTTPAnalyzer posts samples as JSON to an analysis endpoint
type HTTPAnalyzer struct {
	endpoint string
	client   *http.Client
	maxSize  int64
}

// NewHTTPAnalyzer creates an analyzer for endpoint.
// Client settings come from config.HTTP (DNSSENTRY_HTTP_* variables).
func NewHTTPAnalyzer(endpoint string) *HTTPAnalyzer {
	cfg := config.HTTP

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
	}

	return &HTTPAnalyzer{
		endpoint: endpoint,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		maxSize: cfg.MaxResponseSize,
	}
}

type analysisRequest struct {
	Records []*record.Record `json:"records"`
}

type analysisResponse struct {
	Narrative   string   `json:"narrative"`
	ThreatLevel string   `json:"threatLevel"`
	Indicators  []string `json:"indicators"`
	Timeline    []Event  `json:"timeline"`
	Remediation string   `json:"remediation"`
}

// Analyze posts sample and decodes the report from the response
func (h *HTTPAnalyzer) Analyze(ctx context.Context, sample []*record.Record) (*Report, error) {
	payload, err := json.Marshal(analysisRequest{Records: sample})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sample: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis service returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
		return nil, fmt.Errorf("unexpected content type: %s", contentType)
	}

	// Read one byte past the limit to detect oversized responses
	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis response: %w", err)
	}
	if int64(len(body)) > h.maxSize {
		return nil, fmt.Errorf("analysis response exceeds maximum size of %d bytes (DNSSENTRY_MAX_REPORT_RESPONSE_SIZE)", h.maxSize)
	}

	var decoded analysisResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}

	level, err := ParseThreatLevel(decoded.ThreatLevel)
	if err != nil {
		return nil, err
	}

	return &Report{
		Narrative:   decoded.Narrative,
		ThreatLevel: level,
		Indicators:  decoded.Indicators,
		Timeline:    decoded.Timeline,
		Remediation: decoded.Remediation,
	}, nil
}
