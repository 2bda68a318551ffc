// Package origin decides which cross-origin callers receive CORS headers.
package origin

import (
	"net/http"
	"strings"
)

// DefaultOrigin is used when no origins are configured.
const DefaultOrigin = "http://localhost:3000"

const allowedMethods = "GET,POST,OPTIONS"

// Policy is an ordered allow-set of origins. Matching is exact and
// case-sensitive. A Policy is immutable after Parse.
type Policy struct {
	origins []string
	set     map[string]struct{}
}

// Parse builds a Policy from a comma-separated list. Entries are trimmed,
// empty entries and duplicates are dropped. An empty result falls back to
// DefaultOrigin.
func Parse(raw string) *Policy {
	return New(strings.Split(raw, ","))
}

// New builds a Policy from individual origins with the same rules as Parse.
func New(origins []string) *Policy {
	p := &Policy{set: make(map[string]struct{})}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if _, dup := p.set[o]; dup {
			continue
		}
		p.set[o] = struct{}{}
		p.origins = append(p.origins, o)
	}
	if len(p.origins) == 0 {
		p.set[DefaultOrigin] = struct{}{}
		p.origins = []string{DefaultOrigin}
	}
	return p
}

// Origins returns a copy of the allow-set in configuration order.
func (p *Policy) Origins() []string {
	out := make([]string, len(p.origins))
	copy(out, p.origins)
	return out
}

func (p *Policy) IsAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := p.set[origin]
	return ok
}

// Preflight carries the request headers of an OPTIONS preflight.
type Preflight struct {
	RequestHeaders string
}

// PreflightOf returns the preflight details of r, or nil when r is not a CORS
// preflight request.
func PreflightOf(r *http.Request) *Preflight {
	if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
		return nil
	}
	return &Preflight{RequestHeaders: r.Header.Get("Access-Control-Request-Headers")}
}

// HeadersFor returns the CORS response headers for origin. Disallowed origins
// get no Access-Control-* headers; the browser enforces the block.
func (p *Policy) HeadersFor(origin string, allowed bool, pf *Preflight) http.Header {
	h := make(http.Header)
	h.Add("Vary", "Origin")
	if !allowed {
		return h
	}

	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", "true")

	if pf != nil {
		h.Set("Access-Control-Allow-Methods", allowedMethods)
		if pf.RequestHeaders != "" {
			h.Set("Access-Control-Allow-Headers", pf.RequestHeaders)
			h.Add("Vary", "Access-Control-Request-Headers")
		}
	}
	return h
}
