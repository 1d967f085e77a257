package middleware

import (
	"net/http"

	"github.com/reportlens/securelink-server-go/internal/config"
	apperrors "github.com/reportlens/securelink-server-go/internal/errors"
	"github.com/reportlens/securelink-server-go/internal/httputil"
)

// BodyLimitMiddleware rejects oversized payloads before they reach the
// webhook or admin handlers. Every inbound body here is a small JSON
// document, so the default cap is tight.
type BodyLimitMiddleware struct {
	maxSize int64
}

func NewBodyLimitMiddleware(maxSize int64) *BodyLimitMiddleware {
	if maxSize <= 0 {
		maxSize = config.MaxRequestBodyBytes
	}
	return &BodyLimitMiddleware{maxSize: maxSize}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && r.ContentLength > m.maxSize {
			writeJSON(w, http.StatusRequestEntityTooLarge, httputil.ErrorResponse{
				Error: "Request body too large",
				Code:  apperrors.ErrCodeValidation,
			})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.maxSize)
		next.ServeHTTP(w, r)
	})
}
