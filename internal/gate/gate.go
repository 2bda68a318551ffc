// Package gate decides, for every inbound request, whether it may reach a
// handler. Stages run in a fixed order and the first one that does not allow
// the request ends the pipeline with its decision.
package gate

import (
	"net/http"
	"time"

	"statusgate/internal/credential"
	"statusgate/internal/metrics"
	"statusgate/internal/models"
	"statusgate/internal/origin"
	"statusgate/internal/proxy"
	"statusgate/internal/ratelimit"
)

// DefaultMaxBodyBytes caps request bodies handed to handlers.
const DefaultMaxBodyBytes = 1 << 20

// State is the process-scoped admission state, built once at startup and
// shared by every request.
type State struct {
	Credential   *credential.Store
	Origins      *origin.Policy
	Limiter      *ratelimit.Limiter
	Resolver     *proxy.Resolver
	StrictOrigin bool
}

// Auditor receives rejected admissions. Record must not block.
type Auditor interface {
	Record(models.AdmissionEvent)
}

type noopAuditor struct{}

func (noopAuditor) Record(models.AdmissionEvent) {}

type Gate struct {
	state     State
	protected map[string]struct{}
	auditor   Auditor
	recorder  metrics.Recorder
	now       func() time.Time
	maxBody   int64

	public  []Stage
	private []Stage
}

type Option func(*Gate)

// WithProtected marks exact request paths as requiring the API key.
func WithProtected(paths ...string) Option {
	return func(g *Gate) {
		for _, p := range paths {
			g.protected[p] = struct{}{}
		}
	}
}

func WithAuditor(a Auditor) Option {
	return func(g *Gate) {
		if a != nil {
			g.auditor = a
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(g *Gate) {
		if r != nil {
			g.recorder = r
		}
	}
}

// WithClock replaces time.Now. It should match the limiter's clock.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func WithMaxBodyBytes(n int64) Option {
	return func(g *Gate) {
		if n > 0 {
			g.maxBody = n
		}
	}
}

// New builds a Gate over state. Missing collaborators get their defaults,
// except the credential: a nil store rejects every protected request.
func New(state *State, opts ...Option) *Gate {
	g := &Gate{
		protected: make(map[string]struct{}),
		auditor:   noopAuditor{},
		recorder:  metrics.NoOp{},
		now:       time.Now,
		maxBody:   DefaultMaxBodyBytes,
	}
	if state != nil {
		g.state = *state
	}
	if g.state.Origins == nil {
		g.state.Origins = origin.New(nil)
	}
	if g.state.Limiter == nil {
		g.state.Limiter = ratelimit.New(ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	}
	if g.state.Resolver == nil {
		g.state.Resolver = proxy.NewResolver(proxy.DefaultHops)
	}
	for _, opt := range opts {
		opt(g)
	}

	g.public = []Stage{
		Hardening(),
		Origins(g.state.Origins, g.state.StrictOrigin),
		RateLimit(g.state.Limiter, g.state.Resolver, g.now),
	}
	g.private = append(append([]Stage(nil), g.public...), Credential(g.state.Credential))
	return g
}

// Protected reports whether path requires the API key.
func (g *Gate) Protected(path string) bool {
	_, ok := g.protected[path]
	return ok
}

// Evaluate runs the pipeline for r. The returned decision is the first one
// that did not allow the request, or the last allow, and carries the headers
// of every stage that ran.
func (g *Gate) Evaluate(r *http.Request, protected bool) models.Decision {
	stages := g.public
	if protected {
		stages = g.private
	}

	headers := make(http.Header)
	var d models.Decision
	for _, stage := range stages {
		d = stage(r)
		mergeHeaders(headers, d.Headers)
		if !d.Allowed() {
			break
		}
	}
	d.Headers = headers
	return d
}

func mergeHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
