package service

import (
	"time"

	"github.com/reportlens/securelink-server-go/internal/model"
)

// ExpiryPolicy computes time-to-live per credential class. It is a pure
// component: the same class and creation instant always produce the same
// expiry, with no dependence on the wall clock beyond the injected now.
type ExpiryPolicy struct {
	partnerTTL time.Duration
	starterTTL time.Duration
}

func NewExpiryPolicy(partnerTTL, starterTTL time.Duration) *ExpiryPolicy {
	return &ExpiryPolicy{
		partnerTTL: partnerTTL,
		starterTTL: starterTTL,
	}
}

// TTL returns the default lifespan for a credential class.
func (p *ExpiryPolicy) TTL(class model.CredentialClass) time.Duration {
	if class == model.ClassStarter {
		return p.starterTTL
	}
	return p.partnerTTL
}

// ExpiresAt computes the absolute expiry for a credential minted at
// createdAt. Partner batches may override the TTL; a zero override
// falls back to the class default.
func (p *ExpiryPolicy) ExpiresAt(class model.CredentialClass, createdAt time.Time, override time.Duration) time.Time {
	ttl := p.TTL(class)
	if class == model.ClassPartner && override > 0 {
		ttl = override
	}
	return createdAt.Add(ttl)
}

// IsExpired reports whether the credential is past its TTL at now.
func (p *ExpiryPolicy) IsExpired(cred *model.Credential, now time.Time) bool {
	return cred.IsExpired(now)
}
