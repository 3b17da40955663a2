// Package backend talks to the Flask service that owns customer records.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/readysetinsure/dashboard/internal/customer"
	"github.com/readysetinsure/dashboard/internal/transcript"
)

var ErrNotFound = customer.ErrNotFound

type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type confirmResponse struct {
	Message         string             `json:"message"`
	HasActivePolicy bool               `json:"has_active_policy"`
	UserData        *customer.Customer `json:"user_data"`
}

// Get looks a client up by policy number via /confirmUser.
func (c *Client) Get(ctx context.Context, policyNumber string) (*customer.Customer, error) {
	var resp confirmResponse
	status, err := c.post(ctx, "/confirmUser", map[string]string{"policy_number": policyNumber}, &resp)
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !resp.HasActivePolicy || resp.UserData == nil {
		return nil, ErrNotFound
	}
	return resp.UserData, nil
}

// ListByStatus returns clients in the given status. The backend only exposes
// the incomplete queue; other statuses yield an empty list.
func (c *Client) ListByStatus(ctx context.Context, status customer.Status) ([]customer.Customer, error) {
	if status != customer.StatusIncomplete {
		return []customer.Customer{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/GetIncompleteClients", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var resp struct {
		Users []customer.Customer `json:"users"`
	}
	if _, err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.Users == nil {
		resp.Users = []customer.Customer{}
	}
	return resp.Users, nil
}

// MarkIncomplete moves a client back onto the employee work queue.
func (c *Client) MarkIncomplete(ctx context.Context, policyNumber string) error {
	status, err := c.post(ctx, "/UpdateClientStatus", map[string]string{"policy_number": policyNumber}, nil)
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

// UpdateSummary replaces the case summary.
func (c *Client) UpdateSummary(ctx context.Context, policyNumber, summary string) error {
	status, err := c.post(ctx, "/UpdateClientSummary", map[string]string{
		"policy_number": policyNumber,
		"summary":       summary,
	}, nil)
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

// AppendChatlog appends one message to the stored chatlog.
func (c *Client) AppendChatlog(ctx context.Context, policyNumber string, sender transcript.Sender, message string) error {
	if !sender.Valid() {
		return fmt.Errorf("append chatlog: %w", transcript.ErrUnknownSender)
	}
	status, err := c.post(ctx, "/UpdateClientChatlog", map[string]string{
		"policy_number": policyNumber,
		"message":       message,
		"sender":        string(sender),
	}, nil)
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

func (c *Client) post(ctx context.Context, path string, payload, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("backend %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return resp.StatusCode, fmt.Errorf("backend %s %d: %s", req.URL.Path, resp.StatusCode, errResp.Error)
		}
		return resp.StatusCode, fmt.Errorf("backend %s %d: %s", req.URL.Path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("unmarshal response: %w", err)
		}
	}

	c.logger.Debug("backend call", "path", req.URL.Path, "status", resp.StatusCode)
	return resp.StatusCode, nil
}
