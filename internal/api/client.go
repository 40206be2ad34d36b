// Package api is the REST client for the goat-farm backend.
package api

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

	"github.com/nixlim/herd-top/internal/config"
	"github.com/nixlim/herd-top/internal/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 4 << 20

type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

type Option func(*Client)

// WithHTTPClient replaces the default client built from api.timeout_seconds.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func New(cfg config.APIConfig, tokens TokenSource, logger *zap.SugaredLogger, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing api base_url %q", cfg.BaseURL)
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	c := &Client{
		baseURL: base,
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func farmPath(farmID string, rest ...string) string {
	parts := append([]string{"api", "v1", "goatfarms", url.PathEscape(farmID)}, rest...)
	return strings.Join(parts, "/")
}

// do performs one JSON round-trip and returns the response status code.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, headers map[string]string, body, out any) (int, error) {
	status, data, err := c.roundTrip(ctx, method, path, query, headers, body)
	if err != nil {
		return status, err
	}
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return status, errors.Wrapf(err, "decoding %s %s response", method, path)
		}
	}
	return status, nil
}

// roundTrip sends the request and returns the raw body of a 2xx response.
// Non-2xx statuses come back as *ResponseError.
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, headers map[string]string, body any) (int, []byte, error) {
	op := method + " " + path

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}

	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, errors.Wrapf(err, "encoding %s request", op)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "building %s request", op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := c.tokens.Token()
	if err != nil {
		return 0, nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}

	c.logger.Debugw("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, nil, decodeResponseError(resp.StatusCode, data)
	}
	return resp.StatusCode, data, nil
}

func decodeResponseError(status int, data []byte) error {
	re := &ResponseError{StatusCode: status}
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil {
		re.Message = eb.Message
		re.FieldErrors = eb.Errors
	}
	if re.Message == "" {
		re.Message = http.StatusText(status)
	}
	return re
}

func pageQuery(q url.Values, page, size int) {
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}
}

func (c *Client) HealthAlerts(ctx context.Context, farmID string, windowDays int) (*HealthAlerts, error) {
	q := url.Values{}
	if windowDays > 0 {
		q.Set("windowDays", strconv.Itoa(windowDays))
	}
	var out HealthAlerts
	if _, err := c.do(ctx, http.MethodGet, farmPath(farmID, "health-events", "alerts"), q, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HealthCalendar pages the scheduled health events between From and To.
func (c *Client) HealthCalendar(ctx context.Context, farmID string, cq CalendarQuery) (*Page[HealthEvent], error) {
	q := url.Values{}
	if cq.From != "" {
		q.Set("from", cq.From)
	}
	if cq.To != "" {
		q.Set("to", cq.To)
	}
	if cq.Status != "" {
		q.Set("status", cq.Status)
	}
	pageQuery(q, cq.Page, cq.Size)

	var out Page[HealthEvent]
	if _, err := c.do(ctx, http.MethodGet, farmPath(farmID, "health-events", "calendar"), q, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MarkHealthEventDone(ctx context.Context, farmID, eventID string) error {
	path := farmPath(farmID, "health-events", url.PathEscape(eventID), "done")
	_, err := c.do(ctx, http.MethodPatch, path, nil, nil, nil, nil)
	return err
}

func (c *Client) PregnancyDiagnosisAlerts(ctx context.Context, farmID string, aq AlertQuery) (*PregnancyDiagnosisAlerts, error) {
	q := url.Values{}
	if aq.ReferenceDate != "" {
		q.Set("referenceDate", aq.ReferenceDate)
	}
	pageQuery(q, aq.Page, aq.Size)

	var out PregnancyDiagnosisAlerts
	path := farmPath(farmID, "reproduction", "alerts", "pregnancy-diagnosis")
	if _, err := c.do(ctx, http.MethodGet, path, q, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DryOffAlerts(ctx context.Context, farmID string, aq AlertQuery) (*DryOffAlerts, error) {
	q := url.Values{}
	if aq.ReferenceDate != "" {
		q.Set("referenceDate", aq.ReferenceDate)
	}
	pageQuery(q, aq.Page, aq.Size)

	var out DryOffAlerts
	path := farmPath(farmID, "lactations", "alerts", "dry-off")
	if _, err := c.do(ctx, http.MethodGet, path, q, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateInventoryMovement posts body under idempotencyKey. A 200 response
// means the backend already applied this key and returned the earlier result.
func (c *Client) CreateInventoryMovement(ctx context.Context, farmID, idempotencyKey string, body any) (*MovementResult, error) {
	if idempotencyKey == "" {
		return nil, errors.New("inventory movement requires an idempotency key")
	}
	headers := map[string]string{"Idempotency-Key": idempotencyKey}

	path := farmPath(farmID, "inventory", "movements")
	status, data, err := c.roundTrip(ctx, http.MethodPost, path, nil, headers, body)
	if err != nil {
		return nil, err
	}

	// The status alone decides the outcome: the movement is stored even when
	// the body cannot be read.
	res := &MovementResult{
		StatusCode: status,
		Replayed:   status == http.StatusOK,
	}
	if len(bytes.TrimSpace(data)) > 0 {
		var out InventoryMovement
		if err := json.Unmarshal(data, &out); err != nil {
			res.DecodeErr = errors.Wrapf(err, "decoding POST %s response", path)
			c.logger.Warnw("inventory movement response unreadable",
				"farm", farmID,
				"status", status,
				"error", err,
			)
		} else {
			res.Movement = out
		}
	}
	return res, nil
}

// String is used in log fields.
func (c *Client) String() string {
	return fmt.Sprintf("api.Client(%s)", c.baseURL.Redacted())
}
