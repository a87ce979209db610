package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/franzego/registry-backoffice/internal/config"
	"github.com/franzego/registry-backoffice/pkg/circuitbreaker"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type noContent struct{}

// NoContent is returned by Do for 204 responses and empty bodies.
var NoContent = noContent{}

// Client is the single outbound path to the backoffice REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewClient(cfg config.APIConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cb:     circuitbreaker.NewCircuitBreaker("backoffice-api", cfg.Breaker, countsAsSuccess, logger),
		logger: logger,
	}
}

// countsAsSuccess keeps 4xx answers from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.IsClientError()
}

// BreakerState exposes the breaker state for health checks.
func (c *Client) BreakerState() gobreaker.State {
	return c.cb.State()
}

type request struct {
	token   string
	body    any
	hasBody bool
	headers http.Header
	query   url.Values
}

type RequestOption func(*request)

// WithToken authenticates the request. A value already prefixed with
// "Bearer " is sent unchanged.
func WithToken(token string) RequestOption {
	return func(r *request) { r.token = strings.TrimSpace(token) }
}

// WithBody attaches a body. io.Reader, []byte and string are sent raw;
// anything else is encoded as JSON.
func WithBody(body any) RequestOption {
	return func(r *request) {
		r.body = body
		r.hasBody = body != nil
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *request) { r.headers.Set(key, value) }
}

// WithQuery appends non-empty query values.
func WithQuery(q url.Values) RequestOption {
	return func(r *request) {
		for k, vs := range q {
			for _, v := range vs {
				if v != "" {
					r.query.Add(k, v)
				}
			}
		}
	}
}

func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (any, error) {
	return c.Do(ctx, http.MethodGet, path, opts...)
}

func (c *Client) Post(ctx context.Context, path string, opts ...RequestOption) (any, error) {
	return c.Do(ctx, http.MethodPost, path, opts...)
}

func (c *Client) Patch(ctx context.Context, path string, opts ...RequestOption) (any, error) {
	return c.Do(ctx, http.MethodPatch, path, opts...)
}

// Do sends the request and decodes the response. The result is NoContent,
// the decoded JSON value (numbers as json.Number) or the body as a string.
// Every failure is an *Error.
func (c *Client) Do(ctx context.Context, method, path string, opts ...RequestOption) (any, error) {
	r := &request{headers: http.Header{}, query: url.Values{}}
	for _, opt := range opts {
		opt(r)
	}

	target := c.resolve(path)
	if len(r.query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.query.Encode()
	}

	start := time.Now()
	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.send(ctx, method, target, r)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &Error{Message: "backend unavailable", Err: err}
		}
		c.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", StatusCode(err)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) send(ctx context.Context, method, target string, r *request) (any, error) {
	var bodyReader io.Reader
	if r.hasBody {
		switch b := r.body.(type) {
		case io.Reader:
			bodyReader = b
		case []byte:
			bodyReader = bytes.NewReader(b)
		case string:
			bodyReader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				return nil, &Error{Message: "failed to encode request body", Err: err}
			}
			bodyReader = bytes.NewReader(data)
			r.headers.Set("Content-Type", "application/json")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, &Error{Message: "failed to build request", Err: err}
	}
	req.Header = r.headers
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", bearer(r.token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("request to %s failed", req.URL.Path), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Message: "failed to read response body", Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorFromResponse(resp, body)
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return NoContent, nil
	}
	if isJSON(resp.Header.Get("Content-Type")) {
		v, err := decodeJSON(body)
		if err != nil {
			return nil, &Error{Message: "invalid JSON in response", Status: resp.StatusCode, Details: string(body), Err: err}
		}
		return v, nil
	}
	return string(body), nil
}

func bearer(token string) string {
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		return token
	}
	return "Bearer " + token
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// errorFromResponse never fails: an unreadable error body just leaves
// Details empty.
func errorFromResponse(resp *http.Response, body []byte) *Error {
	apiErr := &Error{
		Status:  resp.StatusCode,
		Message: fmt.Sprintf("Request failed with status %d", resp.StatusCode),
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return apiErr
	}
	if isJSON(resp.Header.Get("Content-Type")) {
		details, err := decodeJSON(trimmed)
		if err != nil {
			return apiErr
		}
		apiErr.Details = details
		if obj, ok := AsObject(details); ok {
			if msg, ok := StringField(obj, "message", "error", "title"); ok {
				apiErr.Message = msg
			}
		}
		return apiErr
	}
	apiErr.Details = string(trimmed)
	return apiErr
}
