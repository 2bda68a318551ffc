package gate

import (
	"log"
	"net/http"

	"github.com/google/uuid"

	"statusgate/internal/models"
)

// RequestIDHeader correlates a response with server-side log lines.
const RequestIDHeader = "X-Request-Id"

// Middleware applies the admission decision to every request. Rejections are
// answered here with a JSON error body and never reach next.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set(RequestIDHeader, reqID)

		d := g.Evaluate(r, g.Protected(r.URL.Path))
		for k, vs := range d.Headers {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		g.recorder.Decision(d.Outcome, d.Stage)

		switch {
		case d.Outcome == models.OutcomePreflight:
			w.Header().Set("Content-Length", "0")
			w.WriteHeader(d.Status)
			return
		case d.Rejected():
			g.deny(r, reqID, d)
			WriteError(w, d.Status, d.Message)
			return
		}

		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, g.maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gate) deny(r *http.Request, reqID string, d models.Decision) {
	ip := g.state.Resolver.ClientIdentity(r)
	log.Printf("ADMISSION_DENIED | id=%s outcome=%s stage=%s ip=%s method=%s path=%s",
		reqID, d.Outcome, d.Stage, ip, r.Method, r.URL.Path)

	g.auditor.Record(models.AdmissionEvent{
		ID:       reqID,
		At:       g.now().UTC(),
		Outcome:  d.Outcome,
		Stage:    d.Stage,
		Identity: ip,
		Method:   r.Method,
		Path:     r.URL.Path,
		Status:   d.Status,
	})
}
