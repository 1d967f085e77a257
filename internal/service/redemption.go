package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reportlens/securelink-server-go/internal/audit"
	apperrors "github.com/reportlens/securelink-server-go/internal/errors"
	"github.com/reportlens/securelink-server-go/internal/metrics"
	"github.com/reportlens/securelink-server-go/internal/repository"
	"github.com/reportlens/securelink-server-go/internal/util"
)

// RedemptionResult is returned on the first successful access of a
// secure link. The chat session id is handed to the analysis subsystem.
type RedemptionResult struct {
	CredentialID  string    `json:"credentialId"`
	ChatSessionID string    `json:"chatSessionId"`
	RedeemedAt    time.Time `json:"redeemedAt"`
}

// RedemptionGate validates a presented credential and performs the
// one-way redeem transition. The check-then-transition sequence is a
// single conditional update in the store, so two simultaneous attempts
// on one id can never both succeed.
type RedemptionGate struct {
	creds   repository.CredentialRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewRedemptionGate(creds repository.CredentialRepository, m *metrics.Metrics) *RedemptionGate {
	return &RedemptionGate{creds: creds, metrics: m, now: time.Now}
}

// WithClock overrides the time source; used by tests.
func (g *RedemptionGate) WithClock(now func() time.Time) *RedemptionGate {
	g.now = now
	return g
}

// Redeem consumes the credential with the given id. Failures are typed:
// NOT_FOUND for unknown ids (malformed ids report the same, so the
// response does not leak which ids exist), ALREADY_USED for a consumed
// link, EXPIRED past the TTL regardless of stored state.
func (g *RedemptionGate) Redeem(ctx context.Context, id string) (*RedemptionResult, error) {
	if !util.IsValidUUID(id) {
		g.denied(ctx, id, apperrors.ErrCodeNotFound)
		return nil, apperrors.NotFound("Link")
	}

	now := g.now()
	cred, err := g.creds.MarkRedeemed(ctx, id, now)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok {
			g.denied(ctx, id, appErr.Code)
			return nil, err
		}
		log.Error().Err(err).Str("credentialId", util.MaskCredentialID(id)).Msg("redeem: store error")
		return nil, err
	}

	g.metrics.CredentialsRedeemed.Inc()
	audit.Log(ctx, audit.Event{
		Type:         audit.EventCredentialRedeemed,
		CredentialID: util.MaskCredentialID(id),
		PartnerID:    derefOrEmpty(cred.OwnerPartnerID),
	})
	log.Info().
		Str("credentialId", util.MaskCredentialID(id)).
		Time("redeemedAt", now).
		Msg("credential redeemed")

	return &RedemptionResult{
		CredentialID:  cred.ID,
		ChatSessionID: derefOrEmpty(cred.ChatSessionID),
		RedeemedAt:    now,
	}, nil
}

func (g *RedemptionGate) denied(ctx context.Context, id string, code apperrors.ErrorCode) {
	g.metrics.RedemptionsDenied.WithLabelValues(string(code)).Inc()
	audit.Log(ctx, audit.Event{
		Type:         audit.EventRedemptionDenied,
		CredentialID: util.MaskCredentialID(id),
		Details:      map[string]interface{}{"reason": string(code)},
	})
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
