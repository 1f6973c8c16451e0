package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ThreadsConfig carries the tunables for the Threads Graph API client.
type ThreadsConfig struct {
	BaseURL     string
	Timeout     time.Duration
	RPS         float64
	Burst       int
	BreakerName string
	HTTPClient  *http.Client // optional, for tests
}

// threadsClient publishes through the Threads Graph API. All clients built
// by one factory share a limiter and circuit breaker so a melting upstream
// is shed across owners, while each client keeps its own token.
type threadsClient struct {
	base    string
	token   string
	hc      *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewThreadsFactory returns a Factory producing Graph API clients. The
// limiter and breaker are created once and shared by every client the
// factory builds.
func NewThreadsFactory(cfg ThreadsConfig) Factory {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    cfg.BreakerName,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Permanent failures are the caller's problem, not upstream
			// health; only transient ones count toward tripping.
			var ge *Error
			if errors.As(err, &ge) {
				return ge.Kind != KindTransient
			}
			return err == nil
		},
	})
	base := strings.TrimRight(cfg.BaseURL, "/")
	return func(accessToken string) Client {
		return &threadsClient{
			base:    base,
			token:   accessToken,
			hc:      hc,
			limiter: limiter,
			breaker: breaker,
		}
	}
}

// idResponse is the {"id": "..."} envelope both publish endpoints return.
type idResponse struct {
	ID string `json:"id"`
}

// insightsResponse is the Graph API insights envelope: one entry per
// requested metric, each carrying a single current value.
type insightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value int64 `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

const insightsMetrics = "views,likes,replies,reposts,quotes,shares,reach,impressions"

// CreateDraft uploads content as a TEXT media container.
func (c *threadsClient) CreateDraft(ctx context.Context, content string) (string, error) {
	var out idResponse
	err := c.call(ctx, "create_draft", func(status *int) error {
		return requests.
			URL(c.base+"/me/threads").
			Client(c.hc).
			Method(http.MethodPost).
			Param("media_type", "TEXT").
			Param("text", content).
			Param("access_token", c.token).
			AddValidator(captureStatus(status)).
			ToJSON(&out).
			Fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &Error{Kind: KindTransient, Op: "create_draft", Err: errors.New("empty container id in response")}
	}
	return out.ID, nil
}

// CommitDraft publishes a previously created container.
func (c *threadsClient) CommitDraft(ctx context.Context, draftID string) (string, error) {
	var out idResponse
	err := c.call(ctx, "commit_draft", func(status *int) error {
		return requests.
			URL(c.base+"/me/threads_publish").
			Client(c.hc).
			Method(http.MethodPost).
			Param("creation_id", draftID).
			Param("access_token", c.token).
			AddValidator(captureStatus(status)).
			ToJSON(&out).
			Fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &Error{Kind: KindTransient, Op: "commit_draft", Err: errors.New("empty post id in response")}
	}
	return out.ID, nil
}

// FetchMetrics reads the insights counters for a live post. Metrics the
// platform omits stay zero.
func (c *threadsClient) FetchMetrics(ctx context.Context, remoteID string) (*Metrics, error) {
	var out insightsResponse
	err := c.call(ctx, "fetch_metrics", func(status *int) error {
		return requests.
			URL(c.base+"/"+remoteID+"/insights").
			Client(c.hc).
			Param("metric", insightsMetrics).
			Param("access_token", c.token).
			AddValidator(captureStatus(status)).
			ToJSON(&out).
			Fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	flat := make(map[string]int64, len(out.Data))
	for _, d := range out.Data {
		if len(d.Values) > 0 {
			flat[d.Name] = d.Values[0].Value
		}
	}
	return &Metrics{
		Views:       flat["views"],
		Likes:       flat["likes"],
		Comments:    flat["replies"],
		Shares:      flat["shares"],
		Reposts:     flat["reposts"] + flat["quotes"],
		Reach:       flat["reach"],
		Impressions: flat["impressions"],
	}, nil
}

// call runs one Graph API request through the limiter and breaker and
// wraps any failure in a classified *Error.
func (c *threadsClient) call(ctx context.Context, op string, do func(status *int) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Kind: KindTransient, Op: op, Err: err}
	}
	_, err := c.breaker.Execute(func() (any, error) {
		var status int
		if err := do(&status); err != nil {
			return nil, classify(op, status, err)
		}
		return nil, nil
	})
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	// Breaker-open and any other non-gateway error reads as transient.
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// captureStatus validates the response like the default validator while
// recording the status code, so classification sees the real code even
// when the request is rejected.
func captureStatus(status *int) requests.ResponseHandler {
	return func(res *http.Response) error {
		*status = res.StatusCode
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return fmt.Errorf("HTTP %d", res.StatusCode)
		}
		return nil
	}
}

// classify wraps a request failure in a typed gateway error.
func classify(op string, status int, err error) *Error {
	if status == 0 {
		return &Error{Kind: KindTransient, Op: op, Err: fmt.Errorf("transport: %w", err)}
	}
	if status >= 200 && status < 300 {
		// Validator passed but decoding failed.
		return &Error{Kind: KindTransient, Op: op, Status: status, Err: err}
	}
	return &Error{Kind: classifyStatus(status), Op: op, Status: status, Err: err}
}
