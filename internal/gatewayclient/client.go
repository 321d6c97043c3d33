// Package gatewayclient talks to the station command gateway that executes
// remote commands on charging stations.
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrGatewayRejected = errors.New("gateway rejected command")

// StationCommand is one station action. Action names the station-side
// message, e.g. RequestStartTransaction.
type StationCommand struct {
	Action        string         `json:"action"`
	StationID     string         `json:"stationId"`
	TenantID      int            `json:"tenantId"`
	CorrelationID string         `json:"correlationId"`
	Payload       map[string]any `json:"payload"`
}

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Send posts cmd and returns the gateway's response body. Non-2xx answers
// are ErrGatewayRejected.
func (c *Client) Send(ctx context.Context, cmd StationCommand) ([]byte, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/gateway/commands", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", cmd.CorrelationID)
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return b, fmt.Errorf("%w: status %d: %s", ErrGatewayRejected, resp.StatusCode, bytes.TrimSpace(b))
	}
	return b, nil
}
