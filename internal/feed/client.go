package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nitplane/nitplane/pkg/logger"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of a failed response is logged
const maxErrorBody = 512

// StateSource fetches the raw aircraft-state document
type StateSource interface {
	FetchStates(ctx context.Context) (*StatesResponse, error)
}

// Client fetches aircraft states from an OpenSky-compatible states/all endpoint
type Client struct {
	httpClient *http.Client
	sourceURL  string
	limiter    *rate.Limiter
	logger     *logger.Logger
}

// NewClient creates a new state client. requestsPerMinute <= 0 disables rate limiting.
func NewClient(sourceURL string, timeout time.Duration, requestsPerMinute float64, loggerObj *logger.Logger) *Client {
	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), 1)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		sourceURL: sourceURL,
		limiter:   limiter,
		logger:    loggerObj.Named("feed-cli"),
	}
}

// FetchStates issues exactly one GET against the source. No bounding box or
// credentials are sent. Errors are *TransportError, *UpstreamError or ErrEmptyResult.
func (c *Client) FetchStates(ctx context.Context) (*StatesResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sourceURL, nil)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Fetching aircraft states", logger.String("url", c.sourceURL))
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Failed to execute state request", logger.Error(err), logger.String("url", c.sourceURL))
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("Unexpected state status code",
			logger.Int("status_code", resp.StatusCode),
			logger.String("body", string(body)))
		return nil, &UpstreamError{StatusCode: resp.StatusCode}
	}

	var states StatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&states); err != nil {
		c.logger.Warn("Failed to decode state response", logger.Error(err))
		return nil, &UpstreamError{Err: fmt.Errorf("failed to parse states JSON: %w", err)}
	}

	c.logger.Debug("Fetched aircraft states",
		logger.Int("states", len(states.States)),
		logger.Duration("elapsed", time.Since(start)))

	if len(states.States) == 0 {
		return nil, ErrEmptyResult
	}

	return &states, nil
}
