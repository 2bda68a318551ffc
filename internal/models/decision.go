package models

import (
	"net/http"
	"time"
)

type Outcome string
type ClientIdentity string

const (
	OutcomeAllow                 Outcome = "allow"
	OutcomeRejectUnauthorized    Outcome = "reject_unauthorized"
	OutcomeRejectRateLimited     Outcome = "reject_rate_limited"
	OutcomeRejectOriginForbidden Outcome = "reject_origin_forbidden"

	// OutcomePreflight ends the pipeline without reaching a handler, but is
	// not a rejection: the CORS preflight has been answered.
	OutcomePreflight Outcome = "preflight"
)

const (
	StageHardening  = "hardening"
	StageOrigin     = "origin"
	StageRateLimit  = "rate_limit"
	StageCredential = "credential"
)

// Decision is the result of one admission stage, or of the whole pipeline
// once stages have been folded together.
type Decision struct {
	Outcome Outcome
	Stage   string
	Status  int
	Message string

	// Headers are written to the response regardless of the outcome.
	Headers http.Header
}

func Allow(stage string, headers http.Header) Decision {
	return Decision{Outcome: OutcomeAllow, Stage: stage, Status: http.StatusOK, Headers: headers}
}

func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

// Rejected reports whether the decision is a hard rejection. A preflight is
// terminal but not rejected.
func (d Decision) Rejected() bool {
	switch d.Outcome {
	case OutcomeRejectUnauthorized, OutcomeRejectRateLimited, OutcomeRejectOriginForbidden:
		return true
	}
	return false
}

// AdmissionEvent is the audit record of a rejected request. It never carries
// the presented credential.
type AdmissionEvent struct {
	ID       string         `json:"id"`
	At       time.Time      `json:"at"`
	Outcome  Outcome        `json:"outcome"`
	Stage    string         `json:"stage"`
	Identity ClientIdentity `json:"identity"`
	Method   string         `json:"method"`
	Path     string         `json:"path"`
	Status   int            `json:"status"`
}
