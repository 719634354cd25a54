// Package ghl is the outbound client for the external calendar platform
// (GoHighLevel / LeadConnector REST API).
package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://services.leadconnectorhq.com"
	DefaultAPIVersion = "2021-04-15"
	DefaultTimeout    = 15 * time.Second
)

// ErrNotConfigured is returned before any network call when no bearer token
// is configured.
var ErrNotConfigured = errors.New("ghl: api key not configured")

// HTTPError is a non-2xx answer from the platform.
type HTTPError struct {
	Op     string
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("ghl %s: status=%d body=%s", e.Op, e.Status, strings.TrimSpace(string(e.Body)))
}

// ConnectionError covers transport failures and timeouts.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("ghl %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

type Options struct {
	BaseURL    string
	Token      string
	APIVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL    string
	token      string
	apiVersion string
	httpClient *http.Client
	log        *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		apiVersion: apiVersion,
		httpClient: httpClient,
		log:        logger,
	}
}

// Configured reports whether a bearer token is available.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// Response is a successful (2xx) platform answer.
type Response struct {
	Status int
	Body   []byte
}

// HasBody reports whether the response carried a non-blank body.
func (r *Response) HasBody() bool {
	return r != nil && len(bytes.TrimSpace(r.Body)) > 0
}

// Decode unmarshals the body into v. Empty bodies leave v untouched.
func (r *Response) Decode(v any) error {
	if !r.HasBody() {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

func (c *Client) CreateAppointment(ctx context.Context, locationID string, p AppointmentRequest) (*Response, error) {
	return c.do(ctx, "create appointment", http.MethodPost, "/calendars/events/appointments", locationID, p)
}

func (c *Client) UpdateAppointment(ctx context.Context, locationID, id string, p AppointmentRequest) (*Response, error) {
	return c.do(ctx, "update appointment", http.MethodPut, "/calendars/events/appointments/"+id, locationID, p)
}

// CancelAppointment is a status-only update; the platform has no hard delete
// we mirror.
func (c *Client) CancelAppointment(ctx context.Context, locationID, id string) (*Response, error) {
	p := map[string]string{"appointmentStatus": "cancelled"}
	return c.do(ctx, "cancel appointment", http.MethodPut, "/calendars/events/appointments/"+id, locationID, p)
}

func (c *Client) CreateContact(ctx context.Context, locationID string, p ContactRequest) (*Response, error) {
	return c.do(ctx, "create contact", http.MethodPost, "/contacts/", locationID, p)
}

func (c *Client) do(ctx context.Context, op, method, path, locationID string, payload any) (*Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ghl %s: encode payload: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ghl %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Version", c.apiVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if locationID != "" {
		req.Header.Set("LocationId", locationID)
	}

	c.log.DebugContext(ctx, "ghl request", "op", op, "method", method, "path", path)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WarnContext(ctx, "ghl request failed", "op", op, "error", err)
		return nil, &ConnectionError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	c.log.DebugContext(ctx, "ghl response", "op", op, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Op: op, Status: resp.StatusCode, Body: respBody}
	}
	return &Response{Status: resp.StatusCode, Body: respBody}, nil
}
