// Package agentapi is the HTTP client for the agent build service.
package agentapi

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/waabox/builddeck/internal/domain"
)

const (
	defaultBaseURL      = "https://agent-tunnel.avalove.app"
	defaultPollInterval = 2 * time.Second
	maxErrorBody        = 64 << 10

	headerUserID    = "X-User-Id"
	headerRequestID = "X-Request-Id"
)

// Client implements domain.BuildService, domain.StoreService and
// domain.ChatService against the agent service HTTP API.
type Client struct {
	baseURL      string
	client       *http.Client
	stream       *http.Client
	pollInterval time.Duration
	log          zerolog.Logger
}

var (
	_ domain.BuildService = (*Client)(nil)
	_ domain.StoreService = (*Client)(nil)
	_ domain.ChatService  = (*Client)(nil)
)

// NewClient creates an agent service client.
// baseURL is used for testing and overrides; pass empty string to use the default tunnel.
// timeout bounds every non-streaming request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	transport := otelhttp.NewTransport(http.DefaultTransport)
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: timeout, Transport: transport},
		stream:       &http.Client{Transport: transport},
		pollInterval: defaultPollInterval,
		log:          zerolog.Nop(),
	}
}

// SetPollInterval changes the delay between status polls in WaitForBuild.
func (c *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// SetLogger attaches a logger for request tracing.
func (c *Client) SetLogger(l zerolog.Logger) {
	c.log = l.With().Str("component", "agentapi").Logger()
}

// BaseURL returns the host this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func ownerQuery(ownerID string) url.Values {
	q := url.Values{}
	if ownerID != "" {
		q.Set("user_id", ownerID)
	}
	return q
}

func (c *Client) newRequest(ctx context.Context, method, rawURL, ownerID string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, uuid.NewString())
	if ownerID != "" {
		req.Header.Set(headerUserID, ownerID)
	}
	return req, nil
}

// do executes req and returns the response when the status is below 400.
// The caller owns the returned body.
func (c *Client) do(httpClient *http.Client, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("request_id", req.Header.Get(headerRequestID)).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("agent API call")
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, ownerID string, target interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint(path, query), ownerID, nil)
	if err != nil {
		return err
	}
	return c.decodeInto(req, target)
}

func (c *Client) postJSON(ctx context.Context, path string, query url.Values, ownerID string, body, target interface{}) error {
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint(path, query), ownerID, body)
	if err != nil {
		return err
	}
	return c.decodeInto(req, target)
}

func (c *Client) decodeInto(req *http.Request, target interface{}) error {
	resp, err := c.do(c.client, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorBody covers the shapes the service uses for error payloads.
type errorBody struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

// decodeError turns a >= 400 response into an *domain.APIError carrying the
// server's message verbatim.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := serverMessage(raw)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		sentinel = domain.ErrTooManyRequests
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = domain.ErrUnauthorized
	}
	return domain.NewAPIError(resp.StatusCode, message, sentinel)
}

func serverMessage(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return ""
	}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return trimmed
	}
	if len(body.Detail) > 0 {
		var detail string
		if json.Unmarshal(body.Detail, &detail) == nil && detail != "" {
			return detail
		}
	}
	if body.Error != "" {
		return body.Error
	}
	if body.Message != "" {
		return body.Message
	}
	if len(body.Detail) > 0 && string(body.Detail) != "null" {
		return string(body.Detail)
	}
	return trimmed
}
