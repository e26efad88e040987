package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/circuit"
)

// HTTPAdvisor calls an external advisory service for human-readable guidance
// on a scored transaction. The circuit breaker keeps a flapping advisory
// backend from adding latency to every scoring call: while open, Advise
// fails fast and the caller falls back to an absent advisory.
type HTTPAdvisor struct {
	baseURL string
	client  *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
	skipped atomic.Uint64
}

type AdvisorOption func(*HTTPAdvisor)

func WithAdvisorHTTPClient(c *http.Client) AdvisorOption {
	return func(a *HTTPAdvisor) { a.client = c }
}

func WithAdvisorLogger(logger *slog.Logger) AdvisorOption {
	return func(a *HTTPAdvisor) { a.logger = logger }
}

func WithAdvisorBreaker(b *circuit.Breaker) AdvisorOption {
	return func(a *HTTPAdvisor) { a.breaker = b }
}

func NewHTTPAdvisor(baseURL string, opts ...AdvisorOption) (*HTTPAdvisor, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("advisor base URL is required")
	}
	a := &HTTPAdvisor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: advisoryTimeout},
		breaker: circuit.New("risk-advisor", circuit.WithFailureThreshold(3)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type advisoryRequest struct {
	ItemType string   `json:"item_type"`
	Quantity int      `json:"quantity"`
	Score    float64  `json:"score"`
	Level    string   `json:"level"`
	Factors  []string `json:"factors"`
}

type advisoryResponse struct {
	Advisory string `json:"advisory"`
}

// probeEvery is how many calls are rejected fast between probes while the
// circuit is open.
const probeEvery = 8

// Advise requests advisory text for the scored transaction. Errors mean
// "no advisory available"; the scoring path treats them as a skip. While the
// circuit is open, most calls fail fast and every probeEvery-th call goes
// through so the breaker can close again.
func (a *HTTPAdvisor) Advise(ctx context.Context, input ScoreInput, result Result) (string, error) {
	if a.breaker.IsOpen() && a.skipped.Add(1)%probeEvery != 0 {
		return "", dErrors.New(dErrors.CodeUnavailable, "advisory service circuit open")
	}

	text, err := a.call(ctx, input, result)
	if err != nil {
		if _, change := a.breaker.RecordFailure(); change.Opened && a.logger != nil {
			a.logger.WarnContext(ctx, "advisory circuit opened", "error", err)
		}
		return "", err
	}
	if _, change := a.breaker.RecordSuccess(); change.Closed && a.logger != nil {
		a.logger.InfoContext(ctx, "advisory circuit closed")
	}
	return text, nil
}

func (a *HTTPAdvisor) call(ctx context.Context, input ScoreInput, result Result) (string, error) {
	body, err := json.Marshal(advisoryRequest{
		ItemType: input.ItemType,
		Quantity: input.Quantity,
		Score:    result.Score,
		Level:    string(result.Level),
		Factors:  result.Factors,
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode advisory request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/advisories", bytes.NewReader(body))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to build advisory request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "advisory service unreachable")
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", dErrors.Newf(dErrors.CodeUnavailable, "advisory service returned %d", resp.StatusCode)
	}

	var decoded advisoryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&decoded); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode advisory response")
	}
	return decoded.Advisory, nil
}

var _ Advisor = (*HTTPAdvisor)(nil)
