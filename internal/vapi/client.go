// Package vapi is a minimal client for the Vapi voice-call API.
package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.vapi.ai"

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type errorResponse struct {
	Message any    `json:"message"`
	Error   string `json:"error"`
}

// CreateCall places an outbound phone call.
func (c *Client) CreateCall(ctx context.Context, call CreateCallRequest) (*Call, error) {
	body, err := json.Marshal(call)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call/phone", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var out Call
	if err := c.do(req, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCall fetches a call by ID.
func (c *Client) GetCall(ctx context.Context, id string) (*Call, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/call/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var out Call
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCalls returns the most recent calls, newest first.
func (c *Client) ListCalls(ctx context.Context, limit int) ([]Call, error) {
	u := c.baseURL + "/call?limit=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var out []Call
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != nil {
			return fmt.Errorf("api error %d: %v", resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
