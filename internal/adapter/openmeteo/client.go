package openmeteo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/polygon-dashboard/internal/domain"
	"github.com/sony/gobreaker/v2"
)

const (
	// DefaultBaseURL is the Open-Meteo historical weather endpoint.
	DefaultBaseURL = "https://archive-api.open-meteo.com/v1/archive"

	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02T15:04"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("open-meteo temporarily unavailable")

// Client implements domain.FeedFetcher using the Open-Meteo archive API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker[domain.Feed]
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo archive client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		breaker: newBreaker(),
		logger:  logger,
	}
}

func newBreaker() *gobreaker.CircuitBreaker[domain.Feed] {
	return gobreaker.NewCircuitBreaker[domain.Feed](gobreaker.Settings{
		Name:        "open-meteo",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
}

// FetchFeed requests hourly values of req.Field for the request's date window.
func (c *Client) FetchFeed(ctx context.Context, req domain.FeedRequest) (domain.Feed, error) {
	params := url.Values{
		"latitude":   {strconv.FormatFloat(req.Lat, 'f', -1, 64)},
		"longitude":  {strconv.FormatFloat(req.Lon, 'f', -1, 64)},
		"start_date": {req.Start.Format(dateLayout)},
		"end_date":   {req.End.Format(dateLayout)},
		"hourly":     {req.Field},
	}
	fullURL := c.baseURL + "?" + params.Encode()

	feed, err := c.breaker.Execute(func() (domain.Feed, error) {
		return c.doRequest(ctx, fullURL, req.Field)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.Feed{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		return domain.Feed{}, err
	}

	c.logger.Debug("open-meteo feed fetched",
		"lat", req.Lat,
		"lon", req.Lon,
		"field", req.Field,
		"points", len(feed.Values),
	)
	return feed, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, field string) (domain.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("archive request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.Feed{}, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	return DecodeArchive(resp.Body, field)
}
