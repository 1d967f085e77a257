package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/reportlens/securelink-server-go/internal/errors"
	"github.com/reportlens/securelink-server-go/internal/metrics"
	"github.com/reportlens/securelink-server-go/internal/model"
)

const testCredentialID = "7d9e2f10-3a5b-4c8d-9e1f-2a4b6c8d0e1f"

func TestRedeem_Success(t *testing.T) {
	mockRepo := new(mockCredentialRepo)

	fixedNow := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	sessionID := "5a1b3c5d-7e9f-4a2b-8c4d-6e8f0a2b4c67"

	mockRepo.On("MarkRedeemed", mock.Anything, testCredentialID, fixedNow).
		Return(&model.Credential{
			ID:            testCredentialID,
			ChatSessionID: &sessionID,
			State:         model.StateRedeemed,
			RedeemedAt:    &fixedNow,
		}, nil)

	gate := NewRedemptionGate(mockRepo, metrics.NewNop()).
		WithClock(func() time.Time { return fixedNow })

	result, err := gate.Redeem(context.Background(), testCredentialID)

	require.NoError(t, err)
	assert.Equal(t, testCredentialID, result.CredentialID)
	assert.Equal(t, sessionID, result.ChatSessionID)
	assert.Equal(t, fixedNow, result.RedeemedAt)
}

func TestRedeem_MalformedID(t *testing.T) {
	mockRepo := new(mockCredentialRepo)
	gate := NewRedemptionGate(mockRepo, metrics.NewNop())

	// A malformed id reports NOT_FOUND, same as an unknown one, so the
	// response does not reveal which ids exist.
	_, err := gate.Redeem(context.Background(), "not-a-uuid")

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	mockRepo.AssertNotCalled(t, "MarkRedeemed")
}

func TestRedeem_UnknownID(t *testing.T) {
	mockRepo := new(mockCredentialRepo)

	mockRepo.On("MarkRedeemed", mock.Anything, testCredentialID, mock.AnythingOfType("time.Time")).
		Return(nil, apperrors.NotFound("Link"))

	gate := NewRedemptionGate(mockRepo, metrics.NewNop())

	_, err := gate.Redeem(context.Background(), testCredentialID)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestRedeem_AlreadyUsed(t *testing.T) {
	mockRepo := new(mockCredentialRepo)

	mockRepo.On("MarkRedeemed", mock.Anything, testCredentialID, mock.AnythingOfType("time.Time")).
		Return(nil, apperrors.AlreadyUsed())

	gate := NewRedemptionGate(mockRepo, metrics.NewNop())

	_, err := gate.Redeem(context.Background(), testCredentialID)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAlreadyUsed))
}

func TestRedeem_Expired(t *testing.T) {
	mockRepo := new(mockCredentialRepo)

	mockRepo.On("MarkRedeemed", mock.Anything, testCredentialID, mock.AnythingOfType("time.Time")).
		Return(nil, apperrors.Expired())

	gate := NewRedemptionGate(mockRepo, metrics.NewNop())

	_, err := gate.Redeem(context.Background(), testCredentialID)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExpired))
}
