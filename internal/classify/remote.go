package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/logging"
)

// DefaultTimeout bounds a single classification attempt.
const DefaultTimeout = 8 * time.Second

// Remote calls a classification endpoint over HTTP.
type Remote struct {
	endpoint   string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewRemote creates a client for endpoint. An empty endpoint yields a client
// that always reports the service as unavailable.
func NewRemote(endpoint, apiKey string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Remote{
		endpoint:   endpoint,
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// Classify makes one attempt. Any failure, including a response whose enum
// values fall outside the known sets, returns nil. Enum fields the response
// omits are filled from Heuristic on the request text.
func (c *Remote) Classify(ctx context.Context, req Request) *Result {
	if c.endpoint == "" {
		return nil
	}

	res, err := c.do(ctx, req)
	if err != nil {
		logging.LogError("classify", "analyze", err)
		return nil
	}
	return res
}

func (c *Remote) do(ctx context.Context, in Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("apikey", c.apiKey)
	}

	start := time.Now()
	logging.LogRequest("classify", http.MethodPost, c.endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request: %w", err)
	}
	defer resp.Body.Close()
	logging.LogResponse("classify", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyze status %d", resp.StatusCode)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode analyze: %w", err)
	}
	if out.Urgency == "" || out.AICategory == "" {
		h := Heuristic(in.Text)
		if out.Urgency == "" {
			out.Urgency = h.Urgency
		}
		if out.AICategory == "" {
			out.AICategory = h.AICategory
		}
	}
	if !out.Valid() {
		return nil, fmt.Errorf("analyze returned unknown values %q/%q", out.Urgency, out.AICategory)
	}
	return &out, nil
}
