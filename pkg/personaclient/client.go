// Package personaclient is the HTTP client for the persona service. It
// exposes the CRUD surface plus a health probe, with a three-way error
// taxonomy: *TransportError (network/timeout), *APIError (non-2xx) and
// *DataFormatError (unexpected body shape).
package personaclient

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

	"personahub/pkg/domain"
)

const (
	// DefaultListTimeout bounds list/CRUD calls; kept short so the dashboard
	// falls back to cached data quickly.
	DefaultListTimeout = 3 * time.Second
	// DefaultHealthTimeout bounds the health probe.
	DefaultHealthTimeout = 5 * time.Second
)

// Client calls the persona service over HTTP.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	listTimeout   time.Duration
	healthTimeout time.Duration
	authToken     string
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeouts overrides the list and health timeouts.
func WithTimeouts(list, health time.Duration) Option {
	return func(c *Client) {
		if list > 0 {
			c.listTimeout = list
		}
		if health > 0 {
			c.healthTimeout = health
		}
	}
}

// WithAuthToken attaches an admin bearer token to mutating calls.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = strings.TrimSpace(token)
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient constructs a persona service client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{},
		listTimeout:   DefaultListTimeout,
		healthTimeout: DefaultHealthTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListPersonas fetches all personas. The service historically returned
// either a bare array or a {"chatbots": [...]} container; both shapes are
// accepted, anything else is a *DataFormatError.
func (c *Client) ListPersonas(ctx context.Context) ([]domain.Persona, error) {
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	body, err := c.do(ctx, http.MethodGet, "/chatbots", nil)
	if err != nil {
		return nil, err
	}
	return decodePersonaList(body)
}

// GetPersona fetches one persona by its public unique id. Returns
// ErrNotFound on 404.
func (c *Client) GetPersona(ctx context.Context, uniqueID string) (domain.Persona, error) {
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	body, err := c.do(ctx, http.MethodGet, "/chatbots/"+url.PathEscape(uniqueID), nil)
	if err != nil {
		return domain.Persona{}, err
	}
	var p domain.Persona
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.Persona{}, &DataFormatError{Reason: "persona body is not valid JSON"}
	}
	return p, nil
}

// CreatePersona registers a new persona and returns the stored record.
func (c *Client) CreatePersona(ctx context.Context, p domain.Persona) (domain.Persona, error) {
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	body, err := c.do(ctx, http.MethodPost, "/chatbots", p)
	if err != nil {
		return domain.Persona{}, err
	}
	var created domain.Persona
	if err := json.Unmarshal(body, &created); err != nil {
		return domain.Persona{}, &DataFormatError{Reason: "created persona body is not valid JSON"}
	}
	return created, nil
}

// UpdatePersona replaces the persona stored under uniqueID.
func (c *Client) UpdatePersona(ctx context.Context, uniqueID string, p domain.Persona) (domain.Persona, error) {
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	body, err := c.do(ctx, http.MethodPut, "/chatbots/"+url.PathEscape(uniqueID), p)
	if err != nil {
		return domain.Persona{}, err
	}
	var updated domain.Persona
	if err := json.Unmarshal(body, &updated); err != nil {
		return domain.Persona{}, &DataFormatError{Reason: "updated persona body is not valid JSON"}
	}
	return updated, nil
}

// DeletePersona removes the persona stored under uniqueID.
func (c *Client) DeletePersona(ctx context.Context, uniqueID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	_, err := c.do(ctx, http.MethodDelete, "/chatbots/"+url.PathEscape(uniqueID), nil)
	return err
}

// CheckHealth probes the service and reports backend storage kind and
// connectivity; used for status display only.
func (c *Client) CheckHealth(ctx context.Context) (domain.HealthInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	body, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return domain.HealthInfo{}, err
	}
	var info domain.HealthInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return domain.HealthInfo{}, &DataFormatError{Reason: "health body is not valid JSON"}
	}
	return info, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" && method != http.MethodGet {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	return body, nil
}

// decodePersonaList recognizes exactly the two accepted list shapes.
func decodePersonaList(body []byte) ([]domain.Persona, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &DataFormatError{Reason: "empty list body"}
	}
	switch trimmed[0] {
	case '[':
		var personas []domain.Persona
		if err := json.Unmarshal(trimmed, &personas); err != nil {
			return nil, &DataFormatError{Reason: "list body is not an array of personas"}
		}
		return personas, nil
	case '{':
		var container struct {
			Chatbots []domain.Persona `json:"chatbots"`
		}
		if err := json.Unmarshal(trimmed, &container); err != nil || container.Chatbots == nil {
			return nil, &DataFormatError{Reason: "list body has no chatbots array"}
		}
		return container.Chatbots, nil
	default:
		return nil, &DataFormatError{Reason: "list body is neither array nor object"}
	}
}
