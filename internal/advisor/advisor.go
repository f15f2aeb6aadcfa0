// Package advisor is the best-effort external-collaborator client: a thin
// NATS request/reply caller that the daemon tolerates the complete absence
// of. It never blocks a task and never turns advisor trouble into a task
// failure.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/riverrun/depwatch/internal/depwatcherrors"
	"github.com/riverrun/depwatch/internal/logfields"
	"github.com/riverrun/depwatch/internal/metrics"
	"github.com/riverrun/depwatch/internal/reconcile"
)

// AnalyzeSubject is the NATS subject the daemon sends analyze requests on.
// depwatch is a client only; nothing in this package ever subscribes.
const AnalyzeSubject = "depwatch.advisor.analyze"

// request is the wire shape sent on AnalyzeSubject.
type request struct {
	Dependencies []dependency `json:"dependencies"`
	ManifestText string       `json:"manifest_text"`
	EcosystemTag string       `json:"ecosystem_tag"`
}

type dependency struct {
	Name        string `json:"name"`
	VersionSpec string `json:"version_spec"`
	Dev         bool   `json:"dev"`
}

// response is the wire shape a responder replies with.
type response struct {
	MissingDependencies []string `json:"missing_dependencies"`
	Updates             []string `json:"updates"`
	SecurityIssues      []string `json:"security_issues"`
	CompatibilityIssues []string `json:"compatibility_issues"`
}

// Client is a lazily-(re)connecting NATS client. The zero value is not
// usable; construct with New.
type Client struct {
	url               string
	requestTimeout    time.Duration
	reconnectInterval time.Duration

	mu          sync.Mutex
	conn        *nats.Conn
	lastAttempt time.Time
	warnedOnce  bool
	recorder    metrics.Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithRequestTimeout overrides the default 3s per-call bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

// WithReconnectInterval overrides the default 5m floor between connection
// attempts once one has failed, so an absent advisor doesn't turn into a
// hot retry loop.
func WithReconnectInterval(d time.Duration) Option {
	return func(c *Client) { c.reconnectInterval = d }
}

// New builds a Client for url (e.g. "nats://localhost:4222"). No network
// I/O happens until the first Analyze call.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:               url,
		requestTimeout:    3 * time.Second,
		reconnectInterval: 5 * time.Minute,
		recorder:          metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetRecorder overrides the default no-op metrics recorder.
func (c *Client) SetRecorder(r metrics.Recorder) { c.recorder = r }

var _ reconcile.Advisor = (*Client)(nil)

// Analyze sends deps and manifestText to the advisor and returns whatever
// structured result comes back. Any failure -- no NATS server, request
// timeout, malformed reply -- is wrapped in ErrAdvisorUnavailable and must
// never be treated as a task failure by the caller.
func (c *Client) Analyze(ctx context.Context, deps []reconcile.Declared, manifestText, ecosystemTag string) (reconcile.AdvisorResult, error) {
	result, err := c.analyze(ctx, deps, manifestText, ecosystemTag)
	c.recorder.IncAdvisorCall(err == nil)
	return result, err
}

func (c *Client) analyze(ctx context.Context, deps []reconcile.Declared, manifestText, ecosystemTag string) (reconcile.AdvisorResult, error) {
	conn, err := c.connection()
	if err != nil {
		return reconcile.AdvisorResult{}, fmt.Errorf("connect: %w: %w", depwatcherrors.ErrAdvisorUnavailable, err)
	}

	req := request{ManifestText: manifestText, EcosystemTag: ecosystemTag}
	for _, d := range deps {
		req.Dependencies = append(req.Dependencies, dependency{Name: d.Name, VersionSpec: d.VersionSpec, Dev: d.Dev})
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return reconcile.AdvisorResult{}, fmt.Errorf("marshal request: %w: %w", depwatcherrors.ErrAdvisorUnavailable, err)
	}

	rctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	msg, err := conn.RequestWithContext(rctx, AnalyzeSubject, payload)
	if err != nil {
		return reconcile.AdvisorResult{}, fmt.Errorf("request: %w: %w", depwatcherrors.ErrAdvisorUnavailable, err)
	}

	var resp response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return reconcile.AdvisorResult{}, fmt.Errorf("unmarshal reply: %w: %w", depwatcherrors.ErrAdvisorUnavailable, err)
	}
	return reconcile.AdvisorResult{
		MissingDependencies: resp.MissingDependencies,
		Updates:             resp.Updates,
		SecurityIssues:      resp.SecurityIssues,
		CompatibilityIssues: resp.CompatibilityIssues,
	}, nil
}

// connection returns a live NATS connection, attempting to (re)connect at
// most once per reconnectInterval. A prior failed attempt within the
// interval short-circuits to an error without touching the network again.
func (c *Client) connection() (*nats.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.IsConnected() {
		return c.conn, nil
	}

	if !c.lastAttempt.IsZero() && time.Since(c.lastAttempt) < c.reconnectInterval {
		return nil, fmt.Errorf("advisor connection backed off until %s", c.lastAttempt.Add(c.reconnectInterval))
	}
	c.lastAttempt = time.Now()

	conn, err := nats.Connect(c.url, nats.Timeout(c.requestTimeout), nats.MaxReconnects(0))
	if err != nil {
		if !c.warnedOnce {
			slog.Warn("advisor unreachable, proceeding without it", logfields.Reason(err.Error()))
			c.warnedOnce = true
		}
		return nil, err
	}
	c.conn = conn
	c.warnedOnce = false
	return conn, nil
}

// Close releases the underlying NATS connection, if one is open.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
