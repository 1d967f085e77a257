package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/reportlens/securelink-server-go/internal/errors"
	"github.com/reportlens/securelink-server-go/internal/metrics"
	"github.com/reportlens/securelink-server-go/internal/model"
	"github.com/reportlens/securelink-server-go/internal/repository"
)

// Mock repositories

type mockCredentialRepo struct {
	mock.Mock
}

func (m *mockCredentialRepo) CreateBatch(ctx context.Context, params model.CreateBatchParams) ([]model.Credential, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Credential), args.Error(1)
}

func (m *mockCredentialRepo) ClaimUnassigned(ctx context.Context, ownerPartnerID string, count int) ([]model.Credential, error) {
	args := m.Called(ctx, ownerPartnerID, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Credential), args.Error(1)
}

func (m *mockCredentialRepo) GetByID(ctx context.Context, id string) (*model.Credential, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Credential), args.Error(1)
}

func (m *mockCredentialRepo) MarkRedeemed(ctx context.Context, id string, now time.Time) (*model.Credential, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Credential), args.Error(1)
}

func (m *mockCredentialRepo) AttachAssignment(ctx context.Context, id string, assignment model.Assignment) error {
	args := m.Called(ctx, id, assignment)
	return args.Error(0)
}

func (m *mockCredentialRepo) CountUnassigned(ctx context.Context, ownerPartnerID string) (int, error) {
	args := m.Called(ctx, ownerPartnerID)
	return args.Int(0), args.Error(1)
}

func (m *mockCredentialRepo) CountByState(ctx context.Context, ownerPartnerID string) (*model.InventorySummary, error) {
	args := m.Called(ctx, ownerPartnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InventorySummary), args.Error(1)
}

func (m *mockCredentialRepo) MarkExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCredentialRepo) WithTx(tx *sqlx.Tx) repository.CredentialRepository {
	return m
}

const testPartnerID = "0f4b7a4e-9c1d-4c6e-8f2a-1b3c5d7e9f01"

func poolCredentials(partnerID string, n int) []model.Credential {
	creds := make([]model.Credential, n)
	for i := range creds {
		creds[i] = model.Credential{
			ID:             "cred-" + string(rune('a'+i)),
			OwnerPartnerID: &partnerID,
			State:          model.StateAssigned,
			ExpiresAt:      time.Now().Add(24 * time.Hour),
		}
	}
	return creds
}

func TestAllocate_Success(t *testing.T) {
	mockRepo := new(mockCredentialRepo)

	mockRepo.On("CountUnassigned", mock.Anything, testPartnerID).Return(5, nil)
	mockRepo.On("ClaimUnassigned", mock.Anything, testPartnerID, 3).
		Return(poolCredentials(testPartnerID, 3), nil)
	mockRepo.On("AttachAssignment", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("model.Assignment")).
		Return(nil).Times(3)

	allocator := NewInventoryAllocator(nil, mockRepo, metrics.NewNop())

	purchasedAt := time.Now()
	batch, err := allocator.Allocate(context.Background(), testPartnerID, 3, model.Assignment{
		CustomerEmail: "patient@example.com",
		PlanLabel:     "standard",
		Quantity:      3,
		PurchasedAt:   purchasedAt,
	})

	require.NoError(t, err)
	assert.Equal(t, testPartnerID, batch.PartnerID)
	require.Len(t, batch.Credentials, 3)
	for _, cred := range batch.Credentials {
		require.NotNil(t, cred.AssignedEmail)
		assert.Equal(t, "patient@example.com", *cred.AssignedEmail)
		require.NotNil(t, cred.AssignedQuantity)
		assert.Equal(t, 3, *cred.AssignedQuantity)
	}
	mockRepo.AssertExpectations(t)
}

func TestAllocate_InsufficientInventory(t *testing.T) {
	mockRepo := new(mockCredentialRepo)

	mockRepo.On("CountUnassigned", mock.Anything, testPartnerID).Return(2, nil)

	allocator := NewInventoryAllocator(nil, mockRepo, metrics.NewNop())

	_, err := allocator.Allocate(context.Background(), testPartnerID, 5, model.Assignment{
		CustomerEmail: "patient@example.com",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInsufficientInventory))

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	details, ok := appErr.Details.(apperrors.InventoryDetails)
	require.True(t, ok)
	assert.Equal(t, 2, details.Available)
	assert.Equal(t, 5, details.Requested)

	// Nothing was claimed
	mockRepo.AssertNotCalled(t, "ClaimUnassigned")
	mockRepo.AssertNotCalled(t, "AttachAssignment")
}

func TestAllocate_LostRaceAtClaim(t *testing.T) {
	mockRepo := new(mockCredentialRepo)

	// The pre-check passes but a concurrent purchase drains the pool
	// before the claim runs.
	mockRepo.On("CountUnassigned", mock.Anything, testPartnerID).Return(3, nil)
	mockRepo.On("ClaimUnassigned", mock.Anything, testPartnerID, 3).
		Return(nil, apperrors.InsufficientInventory(1, 3))

	allocator := NewInventoryAllocator(nil, mockRepo, metrics.NewNop())

	_, err := allocator.Allocate(context.Background(), testPartnerID, 3, model.Assignment{
		CustomerEmail: "patient@example.com",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInsufficientInventory))
	mockRepo.AssertNotCalled(t, "AttachAssignment")
}

func TestAllocate_InvalidQuantity(t *testing.T) {
	mockRepo := new(mockCredentialRepo)
	allocator := NewInventoryAllocator(nil, mockRepo, metrics.NewNop())

	_, err := allocator.Allocate(context.Background(), testPartnerID, 0, model.Assignment{})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
	mockRepo.AssertNotCalled(t, "CountUnassigned")
}

func TestAvailability(t *testing.T) {
	mockRepo := new(mockCredentialRepo)

	mockRepo.On("CountByState", mock.Anything, testPartnerID).
		Return(&model.InventorySummary{Available: 7, Assigned: 2, Redeemed: 5, Expired: 1}, nil)

	allocator := NewInventoryAllocator(nil, mockRepo, metrics.NewNop())

	summary, err := allocator.Availability(context.Background(), testPartnerID)

	require.NoError(t, err)
	assert.Equal(t, 7, summary.Available)
	assert.Equal(t, 2, summary.Assigned)
	assert.Equal(t, 5, summary.Redeemed)
	assert.Equal(t, 1, summary.Expired)
}
