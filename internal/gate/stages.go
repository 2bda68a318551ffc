package gate

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"statusgate/internal/credential"
	"statusgate/internal/models"
	"statusgate/internal/origin"
	"statusgate/internal/proxy"
	"statusgate/internal/ratelimit"
)

// APIKeyHeader carries the presented credential.
const APIKeyHeader = "X-Api-Key"

const (
	msgUnauthorized    = "Unauthorized"
	msgTooManyRequests = "Too many requests, please try again later."
	msgOriginForbidden = "Origin not allowed"
)

// Stage is one step of the admission pipeline. It must not write to the
// response; headers it wants emitted go in the returned decision.
type Stage func(*http.Request) models.Decision

// hardeningHeaders are emitted on every response, rejections included.
var hardeningHeaders = map[string]string{
	"Content-Security-Policy":           "default-src 'self';base-uri 'self';font-src 'self' https: data:;form-action 'self';frame-ancestors 'self';img-src 'self' data:;object-src 'none';script-src 'self';script-src-attr 'none';style-src 'self' https: 'unsafe-inline';upgrade-insecure-requests",
	"Cross-Origin-Opener-Policy":        "same-origin",
	"Cross-Origin-Resource-Policy":      "same-origin",
	"Origin-Agent-Cluster":              "?1",
	"Referrer-Policy":                   "no-referrer",
	"Strict-Transport-Security":         "max-age=15552000; includeSubDomains",
	"X-Content-Type-Options":            "nosniff",
	"X-Dns-Prefetch-Control":            "off",
	"X-Download-Options":                "noopen",
	"X-Frame-Options":                   "SAMEORIGIN",
	"X-Permitted-Cross-Domain-Policies": "none",
	"X-Xss-Protection":                  "0",
}

func Hardening() Stage {
	return func(*http.Request) models.Decision {
		h := make(http.Header, len(hardeningHeaders))
		for k, v := range hardeningHeaders {
			h.Set(k, v)
		}
		return models.Allow(models.StageHardening, h)
	}
}

// Origins attaches CORS headers and answers preflights. A disallowed origin
// only loses its CORS headers, unless strict is set, in which case it is
// rejected with 403.
func Origins(policy *origin.Policy, strict bool) Stage {
	return func(r *http.Request) models.Decision {
		o := r.Header.Get("Origin")
		allowed := o != "" && policy.IsAllowed(o)

		if strict && o != "" && !allowed {
			return models.Decision{
				Outcome: models.OutcomeRejectOriginForbidden,
				Stage:   models.StageOrigin,
				Status:  http.StatusForbidden,
				Message: msgOriginForbidden,
				Headers: policy.HeadersFor(o, false, nil),
			}
		}

		pf := origin.PreflightOf(r)
		headers := policy.HeadersFor(o, allowed, pf)
		if pf != nil {
			return models.Decision{
				Outcome: models.OutcomePreflight,
				Stage:   models.StageOrigin,
				Status:  http.StatusNoContent,
				Headers: headers,
			}
		}
		return models.Allow(models.StageOrigin, headers)
	}
}

// RateLimit admits the request against the limiter under the identity
// resolved from r.
func RateLimit(limiter *ratelimit.Limiter, resolver *proxy.Resolver, now func() time.Time) Stage {
	return func(r *http.Request) models.Decision {
		res := limiter.Admit(resolver.ClientIdentity(r))

		h := make(http.Header)
		h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(ceilUnix(res.ResetAt), 10))

		if res.Allowed {
			return models.Allow(models.StageRateLimit, h)
		}
		h.Set("Retry-After", strconv.FormatInt(ceilSeconds(res.RetryAfter(now())), 10))
		return models.Decision{
			Outcome: models.OutcomeRejectRateLimited,
			Stage:   models.StageRateLimit,
			Status:  http.StatusTooManyRequests,
			Message: msgTooManyRequests,
			Headers: h,
		}
	}
}

// Credential checks the API key header. An absent header is an empty
// credential and a repeated one is malformed; neither matches.
func Credential(store *credential.Store) Stage {
	return func(r *http.Request) models.Decision {
		if store.Matches(r.Header.Values(APIKeyHeader)) {
			return models.Allow(models.StageCredential, nil)
		}
		return models.Decision{
			Outcome: models.OutcomeRejectUnauthorized,
			Stage:   models.StageCredential,
			Status:  http.StatusUnauthorized,
			Message: msgUnauthorized,
		}
	}
}

func ceilSeconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}

func ceilUnix(t time.Time) int64 {
	if t.Nanosecond() > 0 {
		return t.Unix() + 1
	}
	return t.Unix()
}
