package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/reportlens/securelink-server-go/internal/model"
)

func TestExpiryPolicy_TTL(t *testing.T) {
	policy := NewExpiryPolicy(365*24*time.Hour, 24*time.Hour)

	assert.Equal(t, 365*24*time.Hour, policy.TTL(model.ClassPartner))
	assert.Equal(t, 24*time.Hour, policy.TTL(model.ClassStarter))
}

func TestExpiryPolicy_ExpiresAt(t *testing.T) {
	policy := NewExpiryPolicy(365*24*time.Hour, 24*time.Hour)
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("partner default", func(t *testing.T) {
		expiresAt := policy.ExpiresAt(model.ClassPartner, createdAt, 0)
		assert.Equal(t, createdAt.Add(365*24*time.Hour), expiresAt)
	})

	t.Run("partner override", func(t *testing.T) {
		expiresAt := policy.ExpiresAt(model.ClassPartner, createdAt, 30*24*time.Hour)
		assert.Equal(t, createdAt.Add(30*24*time.Hour), expiresAt)
	})

	t.Run("starter ignores override", func(t *testing.T) {
		expiresAt := policy.ExpiresAt(model.ClassStarter, createdAt, 30*24*time.Hour)
		assert.Equal(t, createdAt.Add(24*time.Hour), expiresAt)
	})
}

func TestExpiryPolicy_IsExpired(t *testing.T) {
	policy := NewExpiryPolicy(365*24*time.Hour, 24*time.Hour)
	expiresAt := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	cred := &model.Credential{ExpiresAt: expiresAt}

	assert.False(t, policy.IsExpired(cred, expiresAt.Add(-time.Second)))
	assert.False(t, policy.IsExpired(cred, expiresAt))
	assert.True(t, policy.IsExpired(cred, expiresAt.Add(time.Second)))
}
