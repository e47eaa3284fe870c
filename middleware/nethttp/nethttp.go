// Package nethttp adapts the defense middleware to net/http handlers.
package nethttp

import (
	"net/http"

	defense "github.com/jassus213/go-defense"
	"github.com/jassus213/go-defense/middleware"
)

// Middleware creates a new middleware handler for the standard `net/http` library.
//
// It wraps an existing `http.Handler`, evaluates the configured defense for
// every request and blocks the request when it fires. Requests that pass are
// served, and their response status is fed to the tracked condition. The
// behavior can be customized using functional options.
//
// It panics when defenseFor is nil.
//
// Example:
//
//	mw := nethttp.Middleware(func(key string) defense.Defender[string] {
//	    return defense.NewDefense[string](failures(key), defense.Response[string]{Value: "locked"})
//	}, middleware.WithTrack[string](failures))
//	http.ListenAndServe(":8080", mw(mux))
func Middleware[T any](defenseFor func(key string) defense.Defender[T], options ...middleware.Option[T]) func(http.Handler) http.Handler {
	cfg := middleware.NewConfig(defenseFor, options...)
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := cfg.KeyFunc(r)
			if err != nil {
				cfg.Logger.Errorf("Failed to extract key: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			result, fired, err := cfg.Evaluate(r, key)
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if fired {
				cfg.Blocked(w, r, result)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			cfg.Record(r, key, rec.status)
		})
	}
}

// statusRecorder remembers the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
