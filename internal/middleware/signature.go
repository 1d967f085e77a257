package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/reportlens/securelink-server-go/internal/audit"
	"github.com/reportlens/securelink-server-go/internal/util"
)

// SignatureHeader carries the payment collaborator's HMAC-SHA256 of the
// raw request body.
const SignatureHeader = "X-Payment-Signature"

// PaymentSignatureMiddleware authenticates payment webhooks. The
// signature covers the exact raw body; the body is restored for the
// handler after verification.
type PaymentSignatureMiddleware struct {
	secret string
}

func NewPaymentSignatureMiddleware(secret string) *PaymentSignatureMiddleware {
	return &PaymentSignatureMiddleware{secret: secret}
}

func (m *PaymentSignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" {
			log.Warn().Msg("payment signature verification bypassed: PAYMENT_WEBHOOK_SECRET is not configured")
			next.ServeHTTP(w, r)
			return
		}

		signature := r.Header.Get(SignatureHeader)
		if signature == "" {
			log.Warn().Msg("payment signature middleware: missing signature header")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventSignatureFailure})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing signature",
			})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("payment signature middleware: failed to read body")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Failed to read request body",
			})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		computed := util.HmacSHA256(m.secret, string(body))
		if !util.ConstantTimeEqual(computed, signature) {
			log.Warn().Msg("payment signature middleware: invalid signature")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventSignatureFailure})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid signature",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
