// Package provider talks to the external place-search API (Yelp Fusion shaped).
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/study-spots/services/spots/internal/ranking"
)

// MaxRadiusMeters is the largest radius the provider accepts.
const MaxRadiusMeters = 40000

// ErrProvider wraps every failure talking to the provider.
var ErrProvider = errors.New("place provider unavailable")

// statusError marks responses that retrying will not fix.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d body=%q", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

type ClientConfig struct {
	APIKey         string
	Categories     string
	Limit          int
	MaxRetries     int
	RetryBaseDelay time.Duration
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Config     ClientConfig
	CB         *gobreaker.CircuitBreaker
	Log        *zap.Logger
}

type Option func(*Client)

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.CB = cb }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.Log = log }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

func New(baseURL string, cfg ClientConfig, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "https://api.yelp.com/v3"
	}
	if cfg.Categories == "" {
		cfg.Categories = "coffee,cafes,libraries"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 20
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Config:     cfg,
		Log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewBreaker builds the breaker guarding provider calls.
func NewBreaker(name string, failureThreshold uint32, timeout time.Duration, log *zap.Logger) *gobreaker.CircuitBreaker {
	if log == nil {
		log = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit-breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

type searchResponse struct {
	Businesses []business `json:"businesses"`
}

type business struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ImageURL    string  `json:"image_url"`
	URL         string  `json:"url"`
	Rating      float64 `json:"rating"`
	Coordinates struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinates"`
	Location struct {
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
}

type detailsResponse struct {
	ID     string   `json:"id"`
	Photos []string `json:"photos"`
}

// ClampRadius bounds r to (0, MaxRadiusMeters]; non-positive values become the max.
func ClampRadius(r int) int {
	if r <= 0 || r > MaxRadiusMeters {
		return MaxRadiusMeters
	}
	return r
}

// Search returns venues near location in provider order. Returned venues have
// no store id and zero signals.
func (c *Client) Search(ctx context.Context, location string, radiusMeters int) ([]ranking.Venue, error) {
	q := url.Values{}
	q.Set("location", location)
	q.Set("radius", strconv.Itoa(ClampRadius(radiusMeters)))
	q.Set("categories", c.Config.Categories)
	q.Set("limit", strconv.Itoa(c.Config.Limit))

	res, err := doWithBreaker[searchResponse](ctx, c, c.BaseURL+"/businesses/search?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrProvider, err)
	}

	out := make([]ranking.Venue, 0, len(res.Businesses))
	for _, b := range res.Businesses {
		out = append(out, ranking.Venue{
			ExternalID: b.ID,
			Name:       b.Name,
			Coordinates: ranking.Coordinates{
				Latitude:  b.Coordinates.Latitude,
				Longitude: b.Coordinates.Longitude,
			},
			Address:  strings.Join(b.Location.DisplayAddress, ", "),
			ImageURL: b.ImageURL,
			URL:      b.URL,
			Rating:   b.Rating,
		})
	}
	return out, nil
}

// Photos returns the photo URLs listed for a business.
func (c *Client) Photos(ctx context.Context, externalID string) ([]string, error) {
	res, err := doWithBreaker[detailsResponse](ctx, c, c.BaseURL+"/businesses/"+url.PathEscape(externalID))
	if err != nil {
		return nil, fmt.Errorf("%w: photos: %v", ErrProvider, err)
	}
	if res.Photos == nil {
		return []string{}, nil
	}
	return res.Photos, nil
}

func doWithBreaker[T any](ctx context.Context, c *Client, u string) (*T, error) {
	if c.CB == nil {
		return doJSONWithRetry[T](ctx, c, u)
	}
	result, err := c.CB.Execute(func() (interface{}, error) {
		return doJSONWithRetry[T](ctx, c, u)
	})
	if err != nil {
		return nil, err
	}
	return result.(*T), nil
}

func doJSONWithRetry[T any](ctx context.Context, c *Client, u string) (*T, error) {
	var lastErr error
	for attempt := 0; attempt <= c.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.Config.RetryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			c.Log.Debug("retrying provider request", zap.String("url", u), zap.Int("attempt", attempt), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		result, err := doJSON[T](ctx, c, u)
		if err == nil {
			return result, nil
		}
		lastErr = err
		c.Log.Warn("provider request failed", zap.String("url", u), zap.Int("attempt", attempt), zap.Error(err))

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			break
		}
	}
	return nil, lastErr
}

func doJSON[T any](ctx context.Context, c *Client, u string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.Config.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: string(b[:min(len(b), 200)])}
	}

	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}
