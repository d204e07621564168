package syncclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"pestops-bknd/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized = errors.New("not authenticated")
	ErrForbidden    = errors.New("not allowed")
)

// StatusError is any other non-2xx answer from the API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Code, e.Message)
}

type apiError struct {
	Error string `json:"error"`
}

// Client talks to the sync API. 503 and 429 answers are retried with backoff;
// the same batch is resent, which the server treats as a replay.
type Client struct {
	http *resty.Client
	logr *zap.Logger

	mu    sync.RWMutex
	token string
}

func New(baseURL string, logr *zap.Logger) *Client {
	if logr == nil {
		logr = zap.NewNop()
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(30 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusServiceUnavailable || r.StatusCode() == http.StatusTooManyRequests
		}).
		SetRetryAfter(func(_ *resty.Client, r *resty.Response) (time.Duration, error) {
			if r == nil {
				return 0, nil
			}
			if secs, err := strconv.Atoi(r.Header().Get("Retry-After")); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second, nil
			}
			return 0, nil
		})
	return &Client{http: c, logr: logr}
}

// SetRetryWait overrides the retry backoff bounds.
func (c *Client) SetRetryWait(min, max time.Duration) {
	c.http.SetRetryWaitTime(min).SetRetryMaxWaitTime(max)
}

// Login exchanges credentials for an access token kept on the client.
func (c *Client) Login(ctx context.Context, email, password, device string) error {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password, "device_info": device}).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/api/v1/auth/login")
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := statusError(resp); err != nil {
		return err
	}

	c.mu.Lock()
	c.token = out.AccessToken
	c.mu.Unlock()
	return nil
}

// SetToken installs an access token obtained elsewhere.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Sync(ctx context.Context, req models.SyncRequest) (*models.SyncResponse, error) {
	var out models.SyncResponse
	resp, err := c.authed(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/api/v1/sync")
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}
	c.logr.Debug("sync round complete",
		zap.Int("sent_interventions", len(req.Interventions)),
		zap.Int("sent_photos", len(req.Photos)),
		zap.Int("rejected", len(out.Errors)),
		zap.Int64("timestamp", out.Timestamp))
	return &out, nil
}

func (c *Client) Changes(ctx context.Context, since int64) (*models.SyncResponse, error) {
	var out models.SyncResponse
	resp, err := c.authed(ctx).
		SetQueryParam("since", strconv.FormatInt(since, 10)).
		SetResult(&out).
		Get("/api/v1/sync/changes")
	if err != nil {
		return nil, fmt.Errorf("changes: %w", err)
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncLedger sends everything pending in l and applies the answer. On error
// the ledger is left untouched so the next attempt resends the same records.
func (c *Client) SyncLedger(ctx context.Context, l *Ledger) (*models.SyncResponse, error) {
	req := l.Pending()
	resp, err := c.Sync(ctx, req)
	if err != nil {
		return nil, err
	}
	l.Acknowledge(req, resp)
	return resp, nil
}

func (c *Client) authed(ctx context.Context) *resty.Request {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	return c.http.R().SetContext(ctx).SetAuthToken(token).SetError(&apiError{})
}

func statusError(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	msg := resp.Status()
	if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
		msg = e.Error
	}
	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", msg, ErrUnauthorized)
	case http.StatusForbidden:
		return fmt.Errorf("%s: %w", msg, ErrForbidden)
	}
	return &StatusError{Code: resp.StatusCode(), Message: msg}
}
