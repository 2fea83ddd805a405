// Package client implements the signed Sailthru API client.
//
// Every request carries the application key, a JSON-encoded payload of
// call parameters, and an MD5 signature over the flattened, sorted
// parameter values. Failures are normalized into the typed taxonomy in
// pkg/errors and recovered through two independent retry layers: an
// exponential-backoff layer for transport and server failures, and a
// rate-limit layer that sleeps for the server-specified delay on 429.
package client

import (
	"context"
	stderrors "errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/singer-go/tap-sailthru/pkg/config"
	"github.com/singer-go/tap-sailthru/pkg/errors"
	"github.com/singer-go/tap-sailthru/pkg/metrics"
)

const (
	defaultBaseURL = "https://api.sailthru.com"

	// maxRetries bounds both retry layers at 3 total attempts each
	maxRetries = 3

	// rateLimitHeader carries the seconds until the quota resets
	rateLimitHeader = "X-Rate-Limit-Remaining"
)

// statusMessages are the fallback diagnostics when the API response
// carries no errormsg of its own.
var statusMessages = map[int]string{
	400: "The request is missing or has a bad parameter.",
	401: "Invalid authorization credentials.",
	403: "User does not have permission to access the resource.",
	404: "The resource you have specified cannot be found.",
	405: "The provided HTTP method is not supported by the URL.",
	409: "The request could not be completed due to a conflict with the current state of the server.",
	429: "API rate limit exceeded, please retry after some time.",
	500: "An error has occurred at Sailthru's end.",
}

// Response is a decoded API response body
type Response = map[string]interface{}

// Client performs authenticated calls against the Sailthru API
type Client struct {
	baseURL      string
	apiKey       string
	apiSecret    string
	userAgent    string
	httpClient   *http.Client
	exportClient *http.Client
	logger       *zap.Logger
	retry        *RetryPolicy
	sleep        func(ctx context.Context, d time.Duration) error
}

// Option customizes client construction
type Option func(*Client)

// WithBaseURL overrides the API base URL
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithRetryPolicy overrides the backoff policy
func WithRetryPolicy(rp *RetryPolicy) Option {
	return func(c *Client) { c.retry = rp }
}

// WithSleep overrides the sleep function used between retries
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// New creates a Sailthru client from tap configuration. The resolved
// request timeout bounds each HTTP call end to end; export downloads
// use a separate unbounded client because they stream bodies of
// arbitrary size.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:   defaultBaseURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
		exportClient: &http.Client{},
		logger:       logger.With(zap.String("component", "sailthru_client")),
		retry:        DefaultRetryPolicy(),
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckPlatformAccess verifies the configured credentials by
// requesting sample settings.
func (c *Client) CheckPlatformAccess(ctx context.Context) error {
	_, err := c.Get(ctx, "/settings", nil)
	return err
}

// GetLists returns all Sailthru lists.
func (c *Client) GetLists(ctx context.Context, params map[string]interface{}) (Response, error) {
	return c.Get(ctx, "/list", params)
}

// GetAdTargeterPlans returns all Ad Targeter plans.
func (c *Client) GetAdTargeterPlans(ctx context.Context, params map[string]interface{}) (Response, error) {
	return c.Get(ctx, "/ad/plan", params)
}

// GetBlasts returns campaign (blast) data. The endpoint cannot return
// all blasts at once; callers must query by status or blast_id.
func (c *Client) GetBlasts(ctx context.Context, params map[string]interface{}) (Response, error) {
	if params["status"] == nil && params["blast_id"] == nil {
		return nil, errors.New(errors.ErrorTypeConfig,
			`endpoint requires either "blast_id" or "status" parameter`)
	}
	return c.Get(ctx, "/blast", params)
}

// GetBlastRepeats returns all recurring mass-mail campaigns.
func (c *Client) GetBlastRepeats(ctx context.Context, params map[string]interface{}) (Response, error) {
	return c.Get(ctx, "/blast_repeat", params)
}

// GetUser returns user profile data for the given id.
func (c *Client) GetUser(ctx context.Context, params map[string]interface{}) (Response, error) {
	if params["id"] == nil {
		return nil, errors.New(errors.ErrorTypeConfig, `required "id" parameter missing`)
	}
	return c.Get(ctx, "/user", params)
}

// GetJob returns the status and export URL for a background job.
func (c *Client) GetJob(ctx context.Context, params map[string]interface{}) (Response, error) {
	if params["job_id"] == nil {
		return nil, errors.New(errors.ErrorTypeConfig, `required "job_id" parameter missing`)
	}
	return c.Get(ctx, "/job", params)
}

// CreateJob submits a data export background job.
func (c *Client) CreateJob(ctx context.Context, params map[string]interface{}) (Response, error) {
	if params["job"] == nil {
		return nil, errors.New(errors.ErrorTypeConfig, `required "job" type parameter missing`)
	}
	return c.Post(ctx, "/job", params)
}

// Get performs a signed GET request against an endpoint path
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]interface{}) (Response, error) {
	return c.request(ctx, http.MethodGet, endpoint, params)
}

// Post performs a signed POST request against an endpoint path
func (c *Client) Post(ctx context.Context, endpoint string, params map[string]interface{}) (Response, error) {
	return c.request(ctx, http.MethodPost, endpoint, params)
}

// StreamExport opens a plain streamed GET against an export file URL.
// The caller owns the returned body and must close it.
func (c *Client) StreamExport(ctx context.Context, exportURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build export request")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.exportClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "export download failed")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Newf(errors.ErrorTypeServer,
			"export download returned HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// request drives the rate-limit retry layer: a 429 is retried up to
// maxRetries total attempts, sleeping for the duration the server
// reports in the rate-limit header at each attempt. All other
// outcomes, including exhausted backoff retries, pass straight
// through.
func (c *Client) request(ctx context.Context, method, endpoint string, params map[string]interface{}) (Response, error) {
	var resp Response
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err = c.requestWithBackoff(ctx, method, endpoint, params)
		if err == nil || !errors.IsType(err, errors.ErrorTypeRateLimit) {
			return resp, err
		}
		if attempt == maxRetries-1 {
			break
		}

		delay := rateLimitDelay(err)
		c.logger.Info("API rate limit exceeded, sleeping",
			zap.String("endpoint", endpoint),
			zap.Duration("delay", delay))
		metrics.RetryAttempts.WithLabelValues("rate_limit").Inc()
		if serr := c.sleep(ctx, delay); serr != nil {
			return nil, errors.Wrap(serr, errors.ErrorTypeTimeout, "rate limit sleep interrupted")
		}
	}
	return nil, err
}

// requestWithBackoff drives the connection-level retry layer:
// transport failures, timeouts, and every API error short of a rate
// limit are retried with exponential backoff up to maxRetries total
// attempts. Rate limits pass through to the outer layer.
func (c *Client) requestWithBackoff(ctx context.Context, method, endpoint string, params map[string]interface{}) (Response, error) {
	var resp Response
	var err error

	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		resp, err = c.do(ctx, method, endpoint, params)
		if err == nil || !errors.IsRetryable(err) {
			return resp, err
		}
		if attempt == c.retry.MaxAttempts-1 {
			break
		}

		delay := c.retry.Delay(attempt)
		c.logger.Warn("request failed, backing off",
			zap.String("endpoint", endpoint),
			zap.Duration("delay", delay),
			zap.Error(err))
		metrics.RetryAttempts.WithLabelValues("backoff").Inc()
		if serr := c.sleep(ctx, delay); serr != nil {
			return nil, errors.Wrap(serr, errors.ErrorTypeTimeout, "backoff sleep interrupted")
		}
	}
	return nil, err
}

// do performs a single signed request and classifies the outcome
func (c *Client) do(ctx context.Context, method, endpoint string, params map[string]interface{}) (Response, error) {
	payload, err := c.preparePayload(params)
	if err != nil {
		return nil, err
	}

	reqURL := c.baseURL + endpoint
	var req *http.Request
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, reqURL+"?"+payload.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(payload.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build request")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	timer := metrics.NewTimer()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveRequest(endpoint, "error", timer.Stop())
		if isTimeout(err) {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "request timed out")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
	}
	defer httpResp.Body.Close()
	metrics.ObserveRequest(endpoint, strconv.Itoa(httpResp.StatusCode), timer.Stop())

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read response body")
	}

	var decoded Response
	if derr := gojson.Unmarshal(body, &decoded); derr != nil {
		if httpResp.StatusCode == http.StatusOK {
			return nil, errors.Wrapf(derr, errors.ErrorTypeData,
				"failed to decode response body from %s", endpoint)
		}
		// Classification only needs the status when the error body is
		// not JSON.
		decoded = Response{}
	}

	if httpResp.StatusCode != http.StatusOK {
		return c.classify(httpResp, decoded)
	}
	return decoded, nil
}

// classify maps a non-200 response onto the typed error taxonomy.
// A 403 with application error code 99 is a deliberate non-error: it
// signals a resource that cannot be exported in its current state, so
// the decoded body is returned with a warning and callers skip the
// resource and continue.
func (c *Client) classify(httpResp *http.Response, body Response) (Response, error) {
	status := httpResp.StatusCode
	code, hasCode := apiErrorCode(body)

	if status == http.StatusForbidden && hasCode && code == 99 {
		c.logger.Warn("resource not in exportable state, skipping",
			zap.Any("response", body))
		return body, nil
	}

	message := statusMessages[status]
	if message == "" {
		message = "Unknown Error"
	}
	if m, ok := body["errormsg"].(string); ok && m != "" {
		message = m
	}

	codeLabel := "None"
	if hasCode {
		codeLabel = strconv.Itoa(code)
	}
	diagnostic := "HTTP-error-code: " + strconv.Itoa(status) +
		", Error: " + codeLabel + ", Message: " + message

	errType := errorTypeForStatus(status, code, hasCode)
	err := errors.New(errType, diagnostic).
		WithDetail("status_code", status)
	if hasCode {
		err = err.WithDetail("error_code", code)
	}
	if status == http.StatusTooManyRequests {
		err = err.WithDetail("retry_after_seconds", parseRateLimitHeader(httpResp.Header))
	}
	return nil, err
}

// errorTypeForStatus maps an (HTTP status, application error code)
// pair onto an error type.
func errorTypeForStatus(status, code int, hasCode bool) errors.ErrorType {
	if status > 500 {
		return errors.ErrorTypeServer
	}
	if status == http.StatusBadRequest && hasCode && code == 99 {
		return errors.ErrorTypeStatsNotReady
	}
	switch status {
	case http.StatusBadRequest:
		return errors.ErrorTypeBadRequest
	case http.StatusUnauthorized:
		return errors.ErrorTypeUnauthorized
	case http.StatusForbidden:
		return errors.ErrorTypeForbidden
	case http.StatusNotFound:
		return errors.ErrorTypeNotFound
	case http.StatusMethodNotAllowed:
		return errors.ErrorTypeMethodNotSupported
	case http.StatusConflict:
		return errors.ErrorTypeConflict
	case http.StatusTooManyRequests:
		return errors.ErrorTypeRateLimit
	case http.StatusInternalServerError:
		return errors.ErrorTypeServer
	default:
		return errors.ErrorTypeBadRequest
	}
}

// preparePayload builds the signed outgoing parameter set:
// {api_key, format=json, json=<serialized params>, sig=<md5 hex>}.
// The signature covers the exact serialized string that is sent, so
// any self-consistent JSON encoding interoperates with the server.
func (c *Client) preparePayload(params map[string]interface{}) (url.Values, error) {
	serialized, err := gojson.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to serialize call parameters")
	}

	payload := map[string]interface{}{
		"api_key": c.apiKey,
		"format":  "json",
		"json":    string(serialized),
	}
	sig := SignatureHash(payload, c.apiSecret)

	values := url.Values{}
	values.Set("api_key", c.apiKey)
	values.Set("format", "json")
	values.Set("json", string(serialized))
	values.Set("sig", sig)
	return values, nil
}

// rateLimitDelay extracts the server-dictated sleep from a rate-limit
// error, read from the rate-limit header at classification time.
func rateLimitDelay(err error) time.Duration {
	var e *errors.Error
	if stderrors.As(err, &e) {
		if secs, ok := e.Details["retry_after_seconds"].(float64); ok {
			return time.Duration(math.Floor(secs)) * time.Second
		}
	}
	return time.Second
}

func apiErrorCode(body Response) (int, bool) {
	switch v := body["error"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

func parseRateLimitHeader(h http.Header) float64 {
	raw := h.Get(rateLimitHeader)
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs < 0 {
		return 1
	}
	return secs
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	var t timeouter
	return stderrors.As(err, &t) && t.Timeout()
}
