// Package workfossa fetches work orders and dispenser metadata from the
// WorkFossa portal. The portal has no API, so pages are fetched over plain
// HTTP with a session cookie and parsed out of the HTML.
package workfossa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fossawork/fossawork/internal/calculator"
)

// ErrLoginFailed is returned when the portal rejects the credentials.
var ErrLoginFailed = errors.New("workfossa login failed")

// Client is an authenticated session against the WorkFossa portal. All
// requests share one token-bucket limiter so scheduled re-scrapes cannot
// hammer the portal.
type Client struct {
	http     *resty.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
	username string
	password string
}

// ClientOptions configures a portal client.
type ClientOptions struct {
	BaseURL  string
	Username string
	Password string
	// RateRPS and Burst bound the request rate against the portal.
	RateRPS float64
	Burst   int
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient builds a portal client with a cookie-backed session.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("portal base URL is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RateRPS <= 0 {
		opts.RateRPS = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 4
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	c := &Client{
		limiter:  rate.NewLimiter(rate.Limit(opts.RateRPS), opts.Burst),
		logger:   opts.Logger,
		username: opts.Username,
		password: opts.Password,
	}

	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetCookieJar(jar).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return c.limiter.Wait(req.Context())
	})
	c.http = httpClient

	return c, nil
}

// Login establishes the portal session. The portal answers a bad login with
// the login form again, so the response body is inspected rather than the
// status code.
func (c *Client) Login(ctx context.Context) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": c.username,
			"password": c.password,
		}).
		Post("/login")
	if err != nil {
		return fmt.Errorf("post login: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return fmt.Errorf("parse login response: %w", err)
	}
	if doc.Find("form#login, .login-error").Length() > 0 {
		return ErrLoginFailed
	}

	c.logger.Info("portal session established", zap.String("user", c.username))
	return nil
}

// FetchWorkOrders retrieves the current work order list.
func (c *Client) FetchWorkOrders(ctx context.Context) ([]calculator.WorkOrder, error) {
	doc, err := c.getDocument(ctx, "/workorders")
	if err != nil {
		return nil, err
	}

	orders := parseWorkOrders(doc)
	c.logger.Info("fetched work orders", zap.Int("count", len(orders)))
	return orders, nil
}

// FetchDispensers retrieves the dispenser configuration for one store.
func (c *Client) FetchDispensers(ctx context.Context, storeNumber string) ([]calculator.Dispenser, error) {
	doc, err := c.getDocument(ctx, "/stores/"+storeNumber+"/dispensers")
	if err != nil {
		return nil, err
	}

	dispensers := parseDispensers(doc, storeNumber)
	c.logger.Debug("fetched dispensers",
		zap.String("store", storeNumber),
		zap.Int("count", len(dispensers)),
	)
	return dispensers, nil
}

func (c *Client) getDocument(ctx context.Context, path string) (*goquery.Document, error) {
	res, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("get %s: portal returned %s", path, res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}
