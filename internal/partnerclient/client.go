// Package partnerclient pushes objects to the endpoints partners registered.
package partnerclient

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

	"ocpi/internal/logging"
	"ocpi/internal/metrics"
	"ocpi/internal/models"
	"ocpi/internal/security"

	"github.com/google/uuid"
)

// Modules addressed by pushes.
const (
	ModuleSessions  = "sessions"
	ModuleCdrs      = "cdrs"
	ModuleLocations = "locations"
	ModuleTokens    = "tokens"
	ModuleCommands  = "commands"
)

var (
	ErrNoEndpoint      = errors.New("partner has no endpoint for module")
	ErrPartnerRejected = errors.New("partner rejected request")
	errMissingStatus   = errors.New("response has no status_code")
)

const maxResponseBodySize = 1 << 20

// Request is one push. Path is appended to the partner's module URL.
type Request struct {
	Module   string
	Method   string
	Path     string
	SchemaID string
	Body     any
}

// Envelope is the response wrapper every partner endpoint answers with.
type Envelope struct {
	Data          json.RawMessage `json:"data,omitempty"`
	StatusCode    int             `json:"status_code"`
	StatusMessage string          `json:"status_message,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (e Envelope) OK() bool { return e.StatusCode >= 1000 && e.StatusCode < 2000 }

type Client struct {
	HTTP *http.Client
	Log  *logging.Logger
}

func New(timeout time.Duration, log *logging.Logger) *Client {
	return &Client{
		HTTP: &http.Client{Timeout: timeout},
		Log:  log,
	}
}

// Push sends req to the partner's receiver endpoint of req.Module. Success
// requires a 1xxx status_code in the body, not only a 2xx HTTP status.
func (c *Client) Push(ctx context.Context, partner *models.TenantPartner, req Request) (*Envelope, error) {
	base, ok := partner.Endpoint(req.Module, models.RoleReceiver)
	if !ok {
		metrics.PartnerPushes.WithLabelValues(req.Module, req.Method, "no_endpoint").Inc()
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoint, req.Module)
	}
	url := strings.TrimRight(base, "/")
	if req.Path != "" {
		url += "/" + strings.TrimLeft(req.Path, "/")
	}

	start := time.Now()
	env, err := c.do(ctx, partner, req.Method, url, req.Body)
	metrics.PartnerPushDuration.WithLabelValues(req.Module).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, ErrPartnerRejected) {
			outcome = "rejected"
		}
	}
	metrics.PartnerPushes.WithLabelValues(req.Module, req.Method, outcome).Inc()

	c.Log.DebugContext(ctx, "partner push",
		logging.Partner(partner.CountryCode, partner.PartyID),
		logging.Module(req.Module),
		"method", req.Method,
		"schema", req.SchemaID,
		"url", url,
		"outcome", outcome)
	return env, err
}

// PostResult delivers an asynchronous command result to a response_url.
func (c *Client) PostResult(ctx context.Context, partner *models.TenantPartner, url string, result models.CommandResult) error {
	_, err := c.do(ctx, partner, http.MethodPost, url, result)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.PartnerPushes.WithLabelValues(ModuleCommands, http.MethodPost, outcome).Inc()
	return err
}

func (c *Client) do(ctx context.Context, partner *models.TenantPartner, method, url string, body any) (*Envelope, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", security.EncodeCredentialToken(partner.OutboundToken))
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	httpReq.Header.Set("X-Correlation-ID", uuid.NewString())
	httpReq.Header.Set("OCPI-to-country-code", partner.CountryCode)
	httpReq.Header.Set("OCPI-to-party-id", partner.PartyID)
	if partner.Tenant != nil {
		httpReq.Header.Set("OCPI-from-country-code", partner.Tenant.CountryCode)
		httpReq.Header.Set("OCPI-from-party-id", partner.Tenant.PartyID)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: http %d", ErrPartnerRejected, resp.StatusCode)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.StatusCode == 0 {
		return nil, errMissingStatus
	}
	if !env.OK() {
		return &env, fmt.Errorf("%w: status_code %d %s", ErrPartnerRejected, env.StatusCode, env.StatusMessage)
	}
	return &env, nil
}
