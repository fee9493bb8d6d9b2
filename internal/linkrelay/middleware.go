package linkrelay

import (
	"net/http"
	"runtime/debug"
	"time"

	"gundalf-client/pkg/uid"

	"github.com/rs/zerolog/log"
)

// recovery recovers from handler panics.
func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Str("component", "linkrelay").Interface("panic", err).
					Bytes("stack", debug.Stack()).Msg("handler panic")
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// requestID tags each callback request with a unique ID. A malformed
// caller-supplied ID is replaced rather than echoed.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !uid.IsValid(id) {
			id = uid.New()
		}
		w.Header().Set("X-Request-ID", id)

		next.ServeHTTP(w, r)
	})
}

// logging logs callback requests.
func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().Str("component", "linkrelay").
			Str("method", r.Method).Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).Msg("callback request")
	})
}
