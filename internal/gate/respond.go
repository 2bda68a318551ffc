package gate

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
)

const (
	msgNotFound = "Not found"
	msgInternal = "Internal server error"
)

type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes v as the JSON response body with status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": msg}. It is the only error body the service
// emits, so internal detail never reaches a client.
func WriteError(w http.ResponseWriter, status int, msg string) {
	if err := WriteJSON(w, status, errorBody{Error: msg}); err != nil {
		log.Printf("❌ Error encoding error response: %v", err)
	}
}

// trackingWriter remembers whether the response has started.
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (t *trackingWriter) WriteHeader(status int) {
	t.wrote = true
	t.ResponseWriter.WriteHeader(status)
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	t.wrote = true
	return t.ResponseWriter.Write(b)
}

func (t *trackingWriter) Written() bool { return t.wrote }

func (t *trackingWriter) Unwrap() http.ResponseWriter { return t.ResponseWriter }

func written(w http.ResponseWriter) bool {
	for {
		switch tw := w.(type) {
		case interface{ Written() bool }:
			return tw.Written()
		case interface{ Unwrap() http.ResponseWriter }:
			w = tw.Unwrap()
		default:
			return false
		}
	}
}

// Recover turns a handler panic into an opaque 500. The panic value and stack
// are logged; nothing is written if the handler already started a response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &trackingWriter{ResponseWriter: w}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Printf("❌ PANIC | id=%s method=%s path=%s err=%v\n%s",
				w.Header().Get(RequestIDHeader), r.Method, r.URL.Path, rec, debug.Stack())
			if !tw.wrote {
				WriteError(tw, http.StatusInternalServerError, msgInternal)
			}
		}()
		next.ServeHTTP(tw, r)
	})
}

// Handle adapts an error-returning handler. A returned error is logged and
// answered with an opaque 500 unless the response has already started.
func Handle(fn func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tw := &trackingWriter{ResponseWriter: w}
		if err := fn(tw, r); err != nil {
			log.Printf("❌ HANDLER_ERROR | id=%s method=%s path=%s err=%v",
				w.Header().Get(RequestIDHeader), r.Method, r.URL.Path, err)
			if !written(tw) {
				WriteError(tw, http.StatusInternalServerError, msgInternal)
			}
		}
	}
}

// NotFound answers unmatched routes, but only if nothing has been written.
func NotFound(w http.ResponseWriter, r *http.Request) {
	if written(w) {
		return
	}
	WriteError(w, http.StatusNotFound, msgNotFound)
}
