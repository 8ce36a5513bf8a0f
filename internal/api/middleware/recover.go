package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// Recoverer turns a handler panic into a 500 error envelope.
func Recoverer(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				log.Error("handler panic",
					zap.Any("panic", rvr),
					zap.ByteString("stack", debug.Stack()),
					zap.String("request_id", GetRequestID(r)),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				deny(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
