package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/samirrijal/osmdash/internal/core/domain"
	"github.com/samirrijal/osmdash/internal/pkg/metrics"
	"github.com/samirrijal/osmdash/internal/pkg/telemetry"
)

const (
	DefaultURL       = "https://overpass-api.de/api/interpreter"
	DefaultTimeout   = 15 * time.Second
	maxResponseBytes = 32 << 20
)

// ClientConfig configures a Client.
type ClientConfig struct {
	URL               string
	Timeout           time.Duration
	UserAgent         string
	RequestsPerMinute int // 0 disables client-side rate limiting
}

// Client executes Overpass QL payloads. It is safe for concurrent use.
type Client struct {
	endpoint  string
	timeout   time.Duration
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewClient returns a Client for cfg, filling in defaults.
func NewClient(cfg ClientConfig) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "osmdash/1.0"
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &Client{
		endpoint:  cfg.URL,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		// Deadlines come from the per-call context.
		http:    &http.Client{},
		limiter: rate.NewLimiter(limit, 1),
		logger:  slog.Default().With("component", "overpass"),
	}
}

// Fetch runs payload against the interpreter. Failures are returned as
// *domain.FetchError. An empty or missing elements array yields an empty
// slice and no error.
func (c *Client) Fetch(ctx context.Context, payload string) ([]domain.RawPOI, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanOverpassFetch)
	defer span.End()

	start := time.Now()
	pois, err := c.fetch(ctx, payload)
	metrics.OverpassDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		kind := "unknown"
		var fe *domain.FetchError
		if errors.As(err, &fe) {
			kind = fe.Kind.String()
			if fe.Kind == domain.FetchServer {
				span.SetAttributes(attribute.Int(telemetry.AttrHTTPStatus, fe.Status))
			}
		}
		metrics.OverpassRequests.WithLabelValues(kind).Inc()
		span.SetAttributes(attribute.String(telemetry.AttrErrorKind, kind))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.OverpassRequests.WithLabelValues("ok").Inc()
	metrics.OverpassElements.Observe(float64(len(pois)))
	span.SetAttributes(attribute.Int(telemetry.AttrElements, len(pois)))
	return pois, nil
}

func (c *Client) fetch(parent context.Context, payload string) ([]domain.RawPOI, error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		if parent.Err() != nil {
			return nil, &domain.FetchError{Kind: domain.FetchCancelled, Err: err}
		}
		// The limiter refuses waits that would overrun the deadline.
		return nil, &domain.FetchError{Kind: domain.FetchTimeout, Err: err}
	}

	reqURL := c.endpoint + "?data=" + url.QueryEscape(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchNetwork, Message: err.Error(), Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(parent, ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		c.logger.Debug("overpass error status", "status", resp.StatusCode)
		return nil, &domain.FetchError{Kind: domain.FetchServer, Status: resp.StatusCode}
	}

	var body response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return []domain.RawPOI{}, nil
		}
		if ctx.Err() != nil {
			return nil, classify(parent, ctx, err)
		}
		return nil, &domain.FetchError{
			Kind:    domain.FetchNetwork,
			Message: "invalid response: " + err.Error(),
			Err:     fmt.Errorf("decode overpass response: %w", err),
		}
	}

	return body.toRawPOIs(), nil
}

// classify maps a transport error to a FetchError. Cancellation of the
// caller's context wins over the fetch's own deadline.
func classify(parent, ctx context.Context, err error) error {
	if parent.Err() != nil {
		return &domain.FetchError{Kind: domain.FetchCancelled, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return &domain.FetchError{Kind: domain.FetchTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &domain.FetchError{Kind: domain.FetchTimeout, Err: err}
	}
	return &domain.FetchError{Kind: domain.FetchNetwork, Message: networkMessage(err), Err: err}
}

func networkMessage(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 && i+2 < len(msg) {
		return msg[i+2:]
	}
	return msg
}
