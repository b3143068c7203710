package middleware

import (
	"fmt"
	"net/http"

	"github.com/karimndoye/sunumarket-backend/api/responses"
	"github.com/karimndoye/sunumarket-backend/pkg/errors"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
)

// Recoverer converts handler panics into 500 responses instead of dropping
// the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("panic: %v", rec)
					logg.Error(r.Context(), "handler panicked", err)
					responses.Error(w, errors.New(errors.CodeInternal, "internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
