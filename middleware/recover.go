package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Recover turns a handler panic into a 500 JSON response and logs it.
// http.ErrAbortHandler is re-raised so the server aborts the connection.
func Recover(logger log.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if err, ok := p.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(p)
				}
				id, _ := RequestIDFromContext(r.Context())
				level.Error(logger).Log("msg", "handler panicked", "method", r.Method, "uri", r.RequestURI,
					"request_id", id, "panic", fmt.Sprint(p))
				WriteJSON(w, http.StatusInternalServerError, map[string]string{
					"message": "Internal server error. Check the server console",
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
