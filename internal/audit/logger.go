package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventCredentialsMinted  EventType = "credentials_minted"
	EventCredentialsClaimed EventType = "credentials_claimed"
	EventCredentialRedeemed EventType = "credential_redeemed"
	EventRedemptionDenied   EventType = "redemption_denied"
	EventFulfillmentReplay  EventType = "fulfillment_replay"
	EventSignatureFailure   EventType = "signature_failure"
	EventRateLimitExceed    EventType = "rate_limit_exceeded"
	EventPartnerCreate      EventType = "partner_create"
)

type Event struct {
	Type         EventType
	PartnerID    string
	CredentialID string
	EventID      string
	IP           string
	UserAgent    string
	Details      map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "securelink").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.PartnerID != "" {
		logger = logger.With().Str("partner_id", event.PartnerID).Logger()
	}
	if event.CredentialID != "" {
		logger = logger.With().Str("credential_id", event.CredentialID).Logger()
	}
	if event.EventID != "" {
		logger = logger.With().Str("payment_event_id", event.EventID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = getClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
