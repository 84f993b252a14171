package openhab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/gray-logic-rulewalk/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-rulewalk/internal/rules"
)

const (
	defaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of an error response is kept for messages.
	maxErrorBody = 512

	readyInitialInterval = 250 * time.Millisecond
	readyMaxInterval     = 5 * time.Second
)

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client talks to an openHAB instance. It satisfies rules.Registry.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     Logger
}

var _ rules.Registry = (*Client)(nil)

// NewClient creates a client for the openHAB instance at cfg.URL.
// No request is made; use WaitReady to probe the server.
func NewClient(cfg config.OpenHABConfig) (*Client, error) {
	base := strings.TrimRight(cfg.URL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, cfg.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    base,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     noopLogger{},
	}, nil
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// ruleDTO mirrors the fields of openHAB's EnrichedRuleDTO that are used here.
type ruleDTO struct {
	UID         string    `json:"uid"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Status      statusDTO `json:"status"`
}

type statusDTO struct {
	Status       string `json:"status"`
	StatusDetail string `json:"statusDetail"`
	Description  string `json:"description"`
}

func (s statusDTO) toStatusInfo() rules.StatusInfo {
	return rules.StatusInfo{
		Status:      rules.Status(s.Status),
		Detail:      rules.StatusDetail(s.StatusDetail),
		Description: s.Description,
	}
}

func (d ruleDTO) toRule() rules.Rule {
	status := d.Status.toStatusInfo()
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return rules.Rule{
		UID:         d.UID,
		Name:        d.Name,
		Description: d.Description,
		Tags:        tags,
		Enabled:     status.Detail != rules.DetailDisabled,
		Status:      status,
	}
}

// GetByTag returns the rules carrying tag. openHAB matches tags exactly,
// including case.
func (c *Client) GetByTag(ctx context.Context, tag string) ([]rules.Rule, error) {
	q := url.Values{}
	q.Set("tags", tag)

	var dtos []ruleDTO
	if err := c.do(ctx, http.MethodGet, "/rest/rules?"+q.Encode(), "", nil, &dtos); err != nil {
		return nil, err
	}

	out := make([]rules.Rule, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toRule())
	}
	return out, nil
}

// GetRule returns a single rule.
func (c *Client) GetRule(ctx context.Context, uid string) (*rules.Rule, error) {
	var dto ruleDTO
	if err := c.do(ctx, http.MethodGet, rulePath(uid, ""), "", nil, &dto); err != nil {
		return nil, err
	}
	rule := dto.toRule()
	return &rule, nil
}

// GetStatusInfo returns the status reported in the rule's enriched DTO.
func (c *Client) GetStatusInfo(ctx context.Context, uid string) (rules.StatusInfo, error) {
	rule, err := c.GetRule(ctx, uid)
	if err != nil {
		return rules.StatusInfo{}, err
	}
	return rule.Status, nil
}

// SetEnabled enables or disables a rule.
func (c *Client) SetEnabled(ctx context.Context, uid string, enabled bool) error {
	body := strings.NewReader(strconv.FormatBool(enabled))
	return c.do(ctx, http.MethodPost, rulePath(uid, "/enable"), "text/plain", body, nil)
}

// EvaluatesConditions reports false: the runnow endpoint always skips the
// rule's conditions.
func (c *Client) EvaluatesConditions() bool {
	return false
}

// RunNow triggers a rule with inputs as the execution context.
//
// openHAB's runnow endpoint takes only the context map and never evaluates
// conditions, so considerConditions=true fails with
// rules.ErrConditionsUnsupported before any request is sent.
func (c *Client) RunNow(ctx context.Context, uid string, considerConditions bool, inputs map[string]any) error {
	if considerConditions {
		return fmt.Errorf("%w: openhab runnow ignores conditions (rule %s)", rules.ErrConditionsUnsupported, uid)
	}
	if inputs == nil {
		inputs = map[string]any{}
	}
	payload, err := json.Marshal(inputs)
	if err != nil {
		return fmt.Errorf("marshalling inputs for %s: %w", uid, err)
	}

	return c.do(ctx, http.MethodPost, rulePath(uid, "/runnow"), "application/json", bytes.NewReader(payload), nil)
}

// Ping checks that the REST root answers with 2xx.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/rest/", "", nil, nil)
}

// WaitReady probes the REST root with exponential backoff until it answers
// or maxWait elapses. maxWait <= 0 probes once.
func (c *Client) WaitReady(ctx context.Context, maxWait time.Duration) error {
	if maxWait <= 0 {
		if err := c.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrNotReady, err)
		}
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = readyInitialInterval
	exp.MaxInterval = readyMaxInterval
	exp.MaxElapsedTime = maxWait

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := c.Ping(ctx)
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.Unauthorized() {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(exp, ctx), func(err error, next time.Duration) {
		c.logger.Debug("openhab not ready", "attempt", attempt, "retry_in", next, "error", err)
	})
	if err != nil {
		return fmt.Errorf("%w after %d attempts: %w", ErrNotReady, attempt, err)
	}

	c.logger.Info("openhab ready", "url", c.baseURL, "attempts", attempt)
	return nil
}

// do performs one request and decodes a JSON response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/rest/rules/") {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s %s", rules.ErrRuleNotFound, method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort for the message
		return &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		// Drain body to allow connection reuse
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

func rulePath(uid, suffix string) string {
	return "/rest/rules/" + url.PathEscape(uid) + suffix
}
