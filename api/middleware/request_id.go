package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/karimndoye/sunumarket-backend/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request an identifier and binds it to the
// context-scoped logger so every downstream line carries it.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)
			ctx := logg.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
