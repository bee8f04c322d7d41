// Package apiclient talks to the CrowdShield HTTP API from a reporting
// device.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/logging"
	"github.com/CrowdShield/CS-Backend/internal/reports"
)

const defaultTimeout = 15 * time.Second

var ErrBadStatus = errors.New("unexpected status")

// StatusError carries a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d: %s", ErrBadStatus, e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool { return target == ErrBadStatus }

// Client submits reports and uploads audio.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// InsertReport posts f to /reports and returns the stored report.
func (c *Client) InsertReport(ctx context.Context, f reports.Fields) (reports.Report, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return reports.Report{}, fmt.Errorf("encode report: %w", err)
	}

	var out reports.Report
	if err := c.do(ctx, "/reports", "application/json", nil, body, &out); err != nil {
		return reports.Report{}, err
	}
	return out, nil
}

type uploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// UploadAudio posts data to /audio and returns its public URL. A relative URL
// from the server is resolved against the client's base URL.
func (c *Client) UploadAudio(ctx context.Context, deviceID, contentType string, data []byte) (string, error) {
	var out uploadResponse
	headers := map[string]string{"X-Device-ID": deviceID}
	if err := c.do(ctx, "/audio", contentType, headers, data, &out); err != nil {
		return "", err
	}
	if strings.HasPrefix(out.URL, "/") {
		return c.baseURL + out.URL, nil
	}
	return out.URL, nil
}

func (c *Client) do(ctx context.Context, path, contentType string, headers map[string]string, body []byte, out any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	logging.LogRequest("api", http.MethodPost, url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	logging.LogResponse("api", resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
