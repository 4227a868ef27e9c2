package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"instalytics/pkg/config"
	"instalytics/pkg/errors"
	"instalytics/pkg/instagram"
	"instalytics/pkg/logger"
	"instalytics/pkg/retry"
)

// maxBodyBytes caps how much of a dataset response is read
const maxBodyBytes = 10 << 20

// Actor run statuses
const (
	StatusReady     = "READY"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusTimingOut = "TIMING-OUT"
	StatusTimedOut  = "TIMED-OUT"
	StatusAborting  = "ABORTING"
	StatusAborted   = "ABORTED"
)

// Run is the subset of an actor run object the client needs
type Run struct {
	ID               string `json:"id"`
	ActID            string `json:"actId"`
	Status           string `json:"status"`
	StatusMessage    string `json:"statusMessage,omitempty"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

type runEnvelope struct {
	Data Run `json:"data"`
}

// Finished reports whether the run reached a terminal status
func (r Run) Finished() bool {
	switch r.Status {
	case StatusReady, StatusRunning, StatusTimingOut, StatusAborting:
		return false
	default:
		return true
	}
}

// runInput is the actor input; the details-only switches are omitted for post runs
type runInput struct {
	DirectURLs                        []string `json:"directUrls"`
	ResultsType                       string   `json:"resultsType"`
	ResultsLimit                      int      `json:"resultsLimit"`
	SearchType                        string   `json:"searchType"`
	SearchLimit                       int      `json:"searchLimit"`
	AddParentData                     bool     `json:"addParentData"`
	EnhanceUserSearchWithFacebookPage *bool    `json:"enhanceUserSearchWithFacebookPage,omitempty"`
	IsUserReelFeedURL                 *bool    `json:"isUserReelFeedURL,omitempty"`
	IsUserTaggedFeedURL               *bool    `json:"isUserTaggedFeedURL,omitempty"`
}

// Client runs the Instagram scraper actor and collects its dataset
type Client struct {
	httpClient    *http.Client
	headers       map[string]string
	baseURL       string
	actorID       string
	token         string
	callTimeout   time.Duration
	waitForFinish time.Duration
	pollInterval  time.Duration
	postsLimit    int
	retry         *retry.Config
	logger        logger.Logger
}

// NewClient creates a new actor client from upstream configuration
func NewClient(cfg config.UpstreamConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{},
		headers: map[string]string{
			"User-Agent":   cfg.UserAgent,
			"Accept":       "application/json",
			"Content-Type": "application/json",
		},
		baseURL:       cfg.BaseURL,
		actorID:       cfg.ActorID,
		token:         cfg.Token,
		callTimeout:   cfg.CallTimeout,
		waitForFinish: cfg.WaitForFinish,
		pollInterval:  cfg.PollInterval,
		postsLimit:    cfg.PostsLimit,
		retry:         retry.DefaultConfig(cfg.Retries+1, log),
		logger:        log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// SetRetry replaces the retry policy for GET requests
func (c *Client) SetRetry(cfg *retry.Config) {
	c.retry = cfg
}

// SetToken replaces the API token
func (c *Client) SetToken(token string) {
	c.token = token
}

// FetchProfileDetails runs the actor in "details" mode for one handle.
// An empty result means the profile does not exist upstream.
func (c *Client) FetchProfileDetails(ctx context.Context, handle string) ([]instagram.RawProfile, error) {
	no := false
	input := runInput{
		DirectURLs:                        []string{instagram.GetUserProfileURL(handle)},
		ResultsType:                       "details",
		ResultsLimit:                      1,
		SearchType:                        "hashtag",
		SearchLimit:                       1,
		AddParentData:                     false,
		EnhanceUserSearchWithFacebookPage: &no,
		IsUserReelFeedURL:                 &no,
		IsUserTaggedFeedURL:               &no,
	}

	var items []instagram.RawProfile
	if err := c.call(ctx, "details", handle, input, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// FetchPosts runs the actor in "posts" mode for one handle
func (c *Client) FetchPosts(ctx context.Context, handle string) ([]instagram.RawPost, error) {
	input := runInput{
		DirectURLs:    []string{instagram.GetUserProfileURL(handle)},
		ResultsType:   "posts",
		ResultsLimit:  c.postsLimit,
		SearchType:    "hashtag",
		SearchLimit:   1,
		AddParentData: true,
	}

	var items []instagram.RawPost
	if err := c.call(ctx, "posts", handle, input, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// call starts a run, waits for it and decodes its dataset into target.
// The whole exchange is bounded by the configured call timeout.
func (c *Client) call(ctx context.Context, operation, handle string, input runInput, target interface{}) error {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	callID := uuid.NewString()
	log := c.logger.WithFields(map[string]interface{}{
		"call_id":   callID,
		"operation": operation,
		"handle":    handle,
	})

	start := time.Now()
	run, err := c.startRun(ctx, input)
	if err == nil {
		log.DebugWithFields("actor run started", map[string]interface{}{"run_id": run.ID})
		run, err = c.waitForRun(ctx, run)
	}
	if err == nil && run.Status != StatusSucceeded {
		err = errors.New(errors.ErrorTypeUpstream, 0,
			fmt.Sprintf("actor run %s finished with status %s", run.ID, run.Status))
	}
	if err == nil {
		err = c.getJSON(ctx, c.datasetItemsURL(run.DefaultDatasetID), target)
	}

	items := 0
	if err == nil {
		items = countItems(target)
	}
	logger.LogUpstreamCall(log, operation, handle, items, time.Since(start), err)

	return err
}

// startRun posts the actor input and returns the created run
func (c *Client) startRun(ctx context.Context, input runInput) (Run, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return Run{}, &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to encode actor input: %v", err),
			Err:     err,
		}
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/runs", c.baseURL, url.PathEscape(c.actorID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Run{}, &errors.Error{
			Type:    errors.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Err:     err,
		}
	}

	var envelope runEnvelope
	if err := c.doJSON(req, &envelope); err != nil {
		return Run{}, err
	}
	return envelope.Data, nil
}

// waitForRun long-polls the run until it reaches a terminal status
func (c *Client) waitForRun(ctx context.Context, run Run) (Run, error) {
	for !run.Finished() {
		endpoint := fmt.Sprintf("%s/v2/actor-runs/%s?waitForFinish=%s",
			c.baseURL, url.PathEscape(run.ID), strconv.Itoa(int(c.waitForFinish.Seconds())))

		var envelope runEnvelope
		if err := c.getJSON(ctx, endpoint, &envelope); err != nil {
			return run, err
		}
		run = envelope.Data

		if run.Finished() {
			break
		}

		select {
		case <-ctx.Done():
			return run, c.contextError(ctx, run.ID)
		case <-time.After(c.pollInterval):
		}
	}
	return run, nil
}

func (c *Client) datasetItemsURL(datasetID string) string {
	params := url.Values{}
	params.Set("clean", "true")
	params.Set("format", "json")
	return fmt.Sprintf("%s/v2/datasets/%s/items?%s", c.baseURL, url.PathEscape(datasetID), params.Encode())
}

// getJSON performs a GET request and decodes the JSON response, retrying
// transient failures. Only GETs are retried; a repeated POST would start a
// second actor run.
func (c *Client) getJSON(ctx context.Context, endpoint string, target interface{}) error {
	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return &errors.Error{
				Type:    errors.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to create request: %v", err),
				Err:     err,
			}
		}
		return c.doJSON(req, target)
	})
}

// doJSON sends the request, checks the status and decodes the body
func (c *Client) doJSON(req *http.Request, target interface{}) error {
	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &errors.Error{
			Type:    errors.ErrorTypeUpstream,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          redact(req.URL),
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	return nil
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    redact(req.URL),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, c.contextError(req.Context(), "")
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      redact(req.URL),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errors.Error{
			Type:    errors.ErrorTypeUpstream,
			Message: fmt.Sprintf("network error: %v", err),
			Err:     err,
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      redact(req.URL),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// checkResponseStatus maps HTTP failures to typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    redact(resp.Request.URL),
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.WarnWithFields("upstream rejected credentials", fields)
		return &errors.Error{
			Type:    errors.ErrorTypeAuth,
			Message: "upstream token missing or invalid",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusNotFound:
		c.logger.WarnWithFields("upstream resource not found", fields)
		return &errors.Error{
			Type:    errors.ErrorTypeNotFound,
			Message: "upstream resource not found",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("upstream rate limit exceeded", fields)
		return &errors.Error{
			Type:    errors.ErrorTypeRateLimit,
			Message: "upstream rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode >= 500:
		c.logger.ErrorWithFields("upstream server error", fields)
		return &errors.Error{
			Type:    errors.ErrorTypeUpstream,
			Message: "upstream server error",
			Code:    resp.StatusCode,
		}
	default:
		c.logger.ErrorWithFields("unexpected upstream status", fields)
		return &errors.Error{
			Type:    errors.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}

func (c *Client) contextError(ctx context.Context, runID string) error {
	msg := "upstream call cancelled"
	if ctx.Err() == context.DeadlineExceeded {
		msg = "upstream call timed out"
	}
	if runID != "" {
		msg = fmt.Sprintf("%s while waiting for run %s", msg, runID)
	}
	return errors.Wrap(errors.ErrorTypeUpstream, 0, ctx.Err(), msg)
}

// redact drops query parameters so tokens never reach the logs
func redact(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := *u
	clean.RawQuery = ""
	return clean.String()
}

func countItems(target interface{}) int {
	switch v := target.(type) {
	case *[]instagram.RawProfile:
		return len(*v)
	case *[]instagram.RawPost:
		return len(*v)
	default:
		return 0
	}
}
