package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/julianshen/commitpro/internal/analysis"
)

// apiClient talks to a running "commitpro serve".
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(req *http.Request, want int) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contacting %s: %w", c.base, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != want {
		return nil, fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, apiMessage(body))
	}
	return body, nil
}

// apiMessage extracts the error of a JSON error body, or returns the text.
func apiMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

// Analyze queues an analysis and returns the server's acknowledgement.
func (c *apiClient) Analyze(ctx context.Context, repoURL string) (string, error) {
	payload, err := json.Marshal(map[string]string{"repoUrl": repoURL})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/analyze", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := c.do(req, http.StatusAccepted)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// Status returns the job status of repoURL.
func (c *apiClient) Status(ctx context.Context, repoURL string) (analysis.JobStatus, error) {
	var st analysis.JobStatus
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/status?repoUrl="+url.QueryEscape(repoURL), nil)
	if err != nil {
		return st, err
	}
	body, err := c.do(req, http.StatusOK)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return st, fmt.Errorf("decoding status: %w", err)
	}
	return st, nil
}
