package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiClient is a thin HTTP client for the easeld API.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(bind, token string) *apiClient {
	base := bind
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is easeld running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed with HTTP %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) Status() (*daemonStatus, error) {
	var status daemonStatus
	if err := c.do(http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *apiClient) List(statuses []string) ([]queueItem, error) {
	path := "/api/queue"
	if len(statuses) > 0 {
		params := make([]string, len(statuses))
		for i, status := range statuses {
			params[i] = "status=" + status
		}
		path += "?" + strings.Join(params, "&")
	}
	var resp queueListPayload
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *apiClient) Describe(id int64) (*queueItemPayload, error) {
	var resp queueItemPayload
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/queue/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) QueueStatus(id int64) (*queueSnapshot, error) {
	var snapshot queueSnapshot
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/queue/%d/status", id), nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *apiClient) Enqueue(req enqueuePayload) (*queueItemPayload, error) {
	var resp queueItemPayload
	if err := c.do(http.MethodPost, "/api/queue", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Remove(id int64) error {
	return c.do(http.MethodDelete, fmt.Sprintf("/api/queue/%d", id), nil, nil)
}
