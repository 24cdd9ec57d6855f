package ticketing

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

	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.hubapi.com"
	ticketsPath                 = "crm/v3/objects/tickets"
	responseBodyReadLimit int64 = 1024
)

var errAPIKeyRequired = errors.New("ticketing api key is required")

// Client wraps the support-desk tickets API used to escalate RMA cases.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured tickets base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the ticketing client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// CreateTicketRequest describes the ticket opened for an escalated case.
type CreateTicketRequest struct {
	Subject       string
	Content       string
	CaseID        string
	Priority      string
	CustomerEmail string
}

// Ticket holds the identifiers returned by the tickets API.
type Ticket struct {
	ID string
}

// CreateTicket opens a support ticket and returns its opaque id.
func (c *Client) CreateTicket(ctx context.Context, req CreateTicketRequest) (*Ticket, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ticketing client not configured")
	}
	if strings.TrimSpace(req.Subject) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket subject is required")
	}

	body := map[string]any{
		"properties": map[string]string{
			"subject":            req.Subject,
			"content":            req.Content,
			"hs_ticket_priority": req.Priority,
			"rma_case_id":        req.CaseID,
			"customer_email":     req.CustomerEmail,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal ticket request")
	}

	url := c.buildURL(ticketsPath)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build ticket request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute ticket request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "ticket request failed")
	}

	var apiResp struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode ticket response")
	}
	if strings.TrimSpace(apiResp.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ticket response missing id")
	}

	return &Ticket{ID: apiResp.ID}, nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
