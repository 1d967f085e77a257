package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/reportlens/securelink-server-go/internal/database"
	apperrors "github.com/reportlens/securelink-server-go/internal/errors"
	"github.com/reportlens/securelink-server-go/internal/metrics"
	"github.com/reportlens/securelink-server-go/internal/model"
	"github.com/reportlens/securelink-server-go/internal/repository"
)

// AllocatedBatch is a reserved set of pool credentials for one purchase.
type AllocatedBatch struct {
	PartnerID   string
	Credentials []model.Credential
}

// InventoryAllocator reserves unassigned credentials from a partner pool
// for a customer purchase. The availability pre-check gives a fast,
// accurate error message; the store-level atomic claim is the actual
// no-oversell guarantee. A claim that loses a race is a legitimate
// INSUFFICIENT_INVENTORY and is never retried here.
type InventoryAllocator struct {
	// db is nil when the allocator is transaction-scoped
	db      *database.DB
	creds   repository.CredentialRepository
	metrics *metrics.Metrics
}

func NewInventoryAllocator(db *database.DB, creds repository.CredentialRepository, m *metrics.Metrics) *InventoryAllocator {
	return &InventoryAllocator{db: db, creds: creds, metrics: m}
}

// WithTx returns an allocator whose claim joins the given transaction
// instead of opening its own.
func (a *InventoryAllocator) WithTx(tx *sqlx.Tx) *InventoryAllocator {
	return &InventoryAllocator{creds: a.creds.WithTx(tx), metrics: a.metrics}
}

// Allocate reserves quantity credentials from the partner's pool and
// attaches the purchase context to each. All-or-nothing: a shortfall at
// any point claims zero credentials.
func (a *InventoryAllocator) Allocate(ctx context.Context, partnerID string, quantity int, assignment model.Assignment) (*AllocatedBatch, error) {
	if quantity < 1 {
		return nil, apperrors.InvalidInput("quantity", "must be at least 1")
	}

	available, err := a.creds.CountUnassigned(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("count unassigned: %w", err)
	}
	if available < quantity {
		a.metrics.InsufficientInventory.Inc()
		log.Warn().
			Str("partnerId", partnerID).
			Int("available", available).
			Int("requested", quantity).
			Msg("allocation rejected: pool cannot satisfy quantity")
		return nil, apperrors.InsufficientInventory(available, quantity)
	}

	var claimed []model.Credential
	if a.db != nil {
		err = a.db.WithTx(ctx, func(tx *sqlx.Tx) error {
			var txErr error
			claimed, txErr = a.WithTx(tx).claimAndAssign(ctx, partnerID, quantity, assignment)
			return txErr
		})
	} else {
		claimed, err = a.claimAndAssign(ctx, partnerID, quantity, assignment)
	}
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeInsufficientInventory) {
			// Lost a race with a concurrent purchase between the check
			// and the claim; the pre-check is only a UX nicety.
			a.metrics.InsufficientInventory.Inc()
		}
		return nil, err
	}

	a.metrics.CredentialsClaimed.Add(float64(len(claimed)))
	log.Info().
		Str("partnerId", partnerID).
		Int("quantity", quantity).
		Str("customerEmail", assignment.CustomerEmail).
		Msg("pool credentials allocated")

	return &AllocatedBatch{PartnerID: partnerID, Credentials: claimed}, nil
}

func (a *InventoryAllocator) claimAndAssign(ctx context.Context, partnerID string, quantity int, assignment model.Assignment) ([]model.Credential, error) {
	claimed, err := a.creds.ClaimUnassigned(ctx, partnerID, quantity)
	if err != nil {
		return nil, err
	}
	for i := range claimed {
		if err := a.creds.AttachAssignment(ctx, claimed[i].ID, assignment); err != nil {
			return nil, fmt.Errorf("attach assignment: %w", err)
		}
		claimed[i].AssignedEmail = &assignment.CustomerEmail
		claimed[i].AssignedPlan = &assignment.PlanLabel
		claimed[i].AssignedQuantity = &assignment.Quantity
		claimed[i].AssignedAt = &assignment.PurchasedAt
	}
	return claimed, nil
}

// Availability is the derived per-state breakdown of a partner's pool,
// used by purchase-flow pre-validation independent of committing a
// purchase.
func (a *InventoryAllocator) Availability(ctx context.Context, partnerID string) (*model.InventorySummary, error) {
	summary, err := a.creds.CountByState(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("count by state: %w", err)
	}
	return summary, nil
}
