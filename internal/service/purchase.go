package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/reportlens/securelink-server-go/internal/audit"
	"github.com/reportlens/securelink-server-go/internal/config"
	"github.com/reportlens/securelink-server-go/internal/database"
	apperrors "github.com/reportlens/securelink-server-go/internal/errors"
	"github.com/reportlens/securelink-server-go/internal/metrics"
	"github.com/reportlens/securelink-server-go/internal/model"
	"github.com/reportlens/securelink-server-go/internal/notify"
	"github.com/reportlens/securelink-server-go/internal/repository"
	"github.com/reportlens/securelink-server-go/internal/util"
)

// FulfillmentResult is what a payment event fulfills into. It is stored
// verbatim in the idempotency ledger, so a replayed webhook returns the
// identical payload.
type FulfillmentResult struct {
	PaymentEventID string             `json:"paymentEventId"`
	Kind           model.PurchaseKind `json:"kind"`
	PartnerID      *string            `json:"partnerId,omitempty"`
	CredentialIDs  []string           `json:"credentialIds"`
	AccessURLs     []string           `json:"accessUrls"`
	Replayed       bool               `json:"-"`
}

// PurchaseOrchestrator is the only component allowed to create or
// consume inventory in response to a confirmed payment. All three entry
// points share one consistency discipline: the event id is claimed in
// the idempotency ledger inside the same transaction that moves
// credential state, so a retried webhook can never mint or allocate
// twice.
type PurchaseOrchestrator struct {
	db            database.TxRunner
	creds         repository.CredentialRepository
	fulfillments  repository.FulfillmentRepository
	partners      repository.PartnerRepository
	allocator     *InventoryAllocator
	expiry        *ExpiryPolicy
	notifier      notify.Notifier
	metrics       *metrics.Metrics
	accessBaseURL string
	now           func() time.Time
}

func NewPurchaseOrchestrator(
	db database.TxRunner,
	creds repository.CredentialRepository,
	fulfillments repository.FulfillmentRepository,
	partners repository.PartnerRepository,
	allocator *InventoryAllocator,
	expiry *ExpiryPolicy,
	notifier notify.Notifier,
	m *metrics.Metrics,
	accessBaseURL string,
) *PurchaseOrchestrator {
	return &PurchaseOrchestrator{
		db:            db,
		creds:         creds,
		fulfillments:  fulfillments,
		partners:      partners,
		allocator:     allocator,
		expiry:        expiry,
		notifier:      notifier,
		metrics:       m,
		accessBaseURL: accessBaseURL,
		now:           time.Now,
	}
}

// WithClock overrides the time source; used by tests.
func (o *PurchaseOrchestrator) WithClock(now func() time.Time) *PurchaseOrchestrator {
	o.now = now
	return o
}

// Fulfill routes a payment-confirmed event to the matching entry point.
func (o *PurchaseOrchestrator) Fulfill(ctx context.Context, event model.PaymentEvent) (*FulfillmentResult, error) {
	if event.PaymentEventID == "" {
		return nil, apperrors.MissingRequired("paymentEventId")
	}
	if !event.PurchaseKind.Valid() {
		return nil, apperrors.InvalidInput("purchaseKind", "unknown purchase kind")
	}

	switch event.PurchaseKind {
	case model.PurchasePartnerBulk:
		return o.FulfillPartnerBulkPurchase(ctx, event)
	case model.PurchaseCustomer:
		return o.FulfillCustomerPurchase(ctx, event)
	default:
		return o.FulfillStarterPurchase(ctx, event)
	}
}

// FulfillPartnerBulkPurchase mints quantity brand-new unassigned
// credentials into the partner's pool.
func (o *PurchaseOrchestrator) FulfillPartnerBulkPurchase(ctx context.Context, event model.PaymentEvent) (*FulfillmentResult, error) {
	if event.PartnerID == nil {
		return nil, apperrors.MissingRequired("partnerId")
	}
	if event.Quantity < 1 || event.Quantity > config.MaxPurchaseQuantity {
		return nil, apperrors.InvalidInput("quantity", fmt.Sprintf("must be between 1 and %d", config.MaxPurchaseQuantity))
	}

	result, err := o.withIdempotency(ctx, event, func(tx *sqlx.Tx) (*FulfillmentResult, error) {
		partner, err := o.partners.WithTx(tx).FindByID(ctx, *event.PartnerID)
		if err != nil {
			return nil, fmt.Errorf("find partner: %w", err)
		}
		if partner == nil {
			return nil, apperrors.NotFound("Partner")
		}

		now := o.now()
		var batchLabel *string
		if event.PlanLabel != "" {
			batchLabel = &event.PlanLabel
		}
		override := time.Duration(event.TTLDays) * 24 * time.Hour
		minted, err := o.creds.WithTx(tx).CreateBatch(ctx, model.CreateBatchParams{
			OwnerPartnerID: event.PartnerID,
			Count:          event.Quantity,
			ExpiresAt:      o.expiry.ExpiresAt(model.ClassPartner, now, override),
			BatchLabel:     batchLabel,
		})
		if err != nil {
			return nil, fmt.Errorf("create batch: %w", err)
		}
		return o.buildResult(event, minted), nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		o.metrics.CredentialsMinted.WithLabelValues(string(model.ClassPartner)).Add(float64(len(result.CredentialIDs)))
		audit.Log(ctx, audit.Event{
			Type:      audit.EventCredentialsMinted,
			PartnerID: *event.PartnerID,
			EventID:   event.PaymentEventID,
			Details:   map[string]interface{}{"quantity": event.Quantity},
		})
		o.notify(ctx, event, result)
	}
	return result, nil
}

// FulfillCustomerPurchase consumes existing inventory from the
// partner's pool. The whole purchase fails with INSUFFICIENT_INVENTORY
// and zero side effects when the pool cannot satisfy the quantity.
func (o *PurchaseOrchestrator) FulfillCustomerPurchase(ctx context.Context, event model.PaymentEvent) (*FulfillmentResult, error) {
	if event.PartnerID == nil {
		return nil, apperrors.MissingRequired("partnerId")
	}
	if event.Quantity < 1 || event.Quantity > config.MaxPurchaseQuantity {
		return nil, apperrors.InvalidInput("quantity", fmt.Sprintf("must be between 1 and %d", config.MaxPurchaseQuantity))
	}
	if !util.IsValidEmail(event.CustomerEmail) {
		return nil, apperrors.InvalidInput("customerEmail", "must be a valid email address")
	}

	result, err := o.withIdempotency(ctx, event, func(tx *sqlx.Tx) (*FulfillmentResult, error) {
		partner, err := o.partners.WithTx(tx).FindByID(ctx, *event.PartnerID)
		if err != nil {
			return nil, fmt.Errorf("find partner: %w", err)
		}
		if partner == nil {
			return nil, apperrors.NotFound("Partner")
		}

		batch, err := o.allocator.WithTx(tx).Allocate(ctx, *event.PartnerID, event.Quantity, model.Assignment{
			CustomerEmail: event.CustomerEmail,
			PlanLabel:     event.PlanLabel,
			Quantity:      event.Quantity,
			PurchasedAt:   o.now(),
		})
		if err != nil {
			return nil, err
		}
		return o.buildResult(event, batch.Credentials), nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		audit.Log(ctx, audit.Event{
			Type:      audit.EventCredentialsClaimed,
			PartnerID: *event.PartnerID,
			EventID:   event.PaymentEventID,
			Details:   map[string]interface{}{"quantity": event.Quantity},
		})
		o.notify(ctx, event, result)
	}
	return result, nil
}

// FulfillStarterPurchase mints exactly one standalone credential with
// the short starter TTL. It never touches any partner's pool.
func (o *PurchaseOrchestrator) FulfillStarterPurchase(ctx context.Context, event model.PaymentEvent) (*FulfillmentResult, error) {
	if !util.IsValidEmail(event.CustomerEmail) {
		return nil, apperrors.InvalidInput("customerEmail", "must be a valid email address")
	}

	result, err := o.withIdempotency(ctx, event, func(tx *sqlx.Tx) (*FulfillmentResult, error) {
		now := o.now()
		txCreds := o.creds.WithTx(tx)
		minted, err := txCreds.CreateBatch(ctx, model.CreateBatchParams{
			OwnerPartnerID: nil,
			Count:          1,
			ExpiresAt:      o.expiry.ExpiresAt(model.ClassStarter, now, 0),
		})
		if err != nil {
			return nil, fmt.Errorf("create starter credential: %w", err)
		}
		err = txCreds.AttachAssignment(ctx, minted[0].ID, model.Assignment{
			CustomerEmail: event.CustomerEmail,
			PlanLabel:     event.PlanLabel,
			Quantity:      1,
			PurchasedAt:   now,
		})
		if err != nil {
			return nil, fmt.Errorf("attach assignment: %w", err)
		}
		return o.buildResult(event, minted), nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		o.metrics.CredentialsMinted.WithLabelValues(string(model.ClassStarter)).Inc()
		audit.Log(ctx, audit.Event{
			Type:    audit.EventCredentialsMinted,
			EventID: event.PaymentEventID,
			Details: map[string]interface{}{"class": string(model.ClassStarter)},
		})
		o.notify(ctx, event, result)
	}
	return result, nil
}

// withIdempotency claims the payment event id and runs fn inside one
// transaction. A duplicate claim means the event was already fulfilled;
// the stored result is replayed instead of surfacing a conflict to the
// payment collaborator, which retries webhooks freely.
func (o *PurchaseOrchestrator) withIdempotency(ctx context.Context, event model.PaymentEvent, fn func(tx *sqlx.Tx) (*FulfillmentResult, error)) (*FulfillmentResult, error) {
	existing, err := o.fulfillments.FindByEventID(ctx, event.PaymentEventID)
	if err != nil {
		return nil, fmt.Errorf("find fulfillment: %w", err)
	}
	if existing != nil && existing.Result != nil {
		return o.replay(ctx, existing)
	}

	var result *FulfillmentResult
	err = o.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		txFulfillments := o.fulfillments.WithTx(tx)
		if err := txFulfillments.Claim(ctx, event.PaymentEventID, event.PurchaseKind); err != nil {
			return err
		}

		var fnErr error
		result, fnErr = fn(tx)
		if fnErr != nil {
			return fnErr
		}

		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		return txFulfillments.SetResult(ctx, event.PaymentEventID, raw)
	})
	if errors.Is(err, repository.ErrDuplicateEvent) {
		// The concurrent fulfillment holding the event id has committed
		// by the time the claim conflicts.
		stored, findErr := o.fulfillments.FindByEventID(ctx, event.PaymentEventID)
		if findErr != nil {
			return nil, fmt.Errorf("find fulfillment after conflict: %w", findErr)
		}
		if stored == nil || stored.Result == nil {
			return nil, apperrors.Internal("Fulfillment record missing after duplicate event")
		}
		return o.replay(ctx, stored)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (o *PurchaseOrchestrator) replay(ctx context.Context, stored *model.Fulfillment) (*FulfillmentResult, error) {
	var result FulfillmentResult
	if err := json.Unmarshal(stored.Result, &result); err != nil {
		return nil, fmt.Errorf("unmarshal stored result: %w", err)
	}
	result.Replayed = true

	o.metrics.FulfillmentReplays.Inc()
	audit.Log(ctx, audit.Event{
		Type:    audit.EventFulfillmentReplay,
		EventID: stored.PaymentEventID,
	})
	log.Info().
		Str("paymentEventId", stored.PaymentEventID).
		Str("kind", string(stored.Kind)).
		Msg("replaying stored fulfillment for retried payment event")

	return &result, nil
}

func (o *PurchaseOrchestrator) buildResult(event model.PaymentEvent, creds []model.Credential) *FulfillmentResult {
	result := &FulfillmentResult{
		PaymentEventID: event.PaymentEventID,
		Kind:           event.PurchaseKind,
		PartnerID:      event.PartnerID,
		CredentialIDs:  make([]string, 0, len(creds)),
		AccessURLs:     make([]string, 0, len(creds)),
	}
	for _, c := range creds {
		result.CredentialIDs = append(result.CredentialIDs, c.ID)
		result.AccessURLs = append(result.AccessURLs, fmt.Sprintf("%s/r/%s", o.accessBaseURL, c.ID))
	}
	return result
}

// notify dispatches the fulfillment email. Payment was taken and the
// credentials are committed, so a delivery failure is logged and
// counted but never unwinds credential state.
func (o *PurchaseOrchestrator) notify(ctx context.Context, event model.PaymentEvent, result *FulfillmentResult) {
	if event.CustomerEmail == "" {
		return
	}

	brandLabel := ""
	if event.PartnerID != nil {
		partner, err := o.partners.FindByID(ctx, *event.PartnerID)
		if err == nil && partner != nil {
			brandLabel = partner.BrandLabel
		}
	}

	err := o.notifier.SendCredentialsEmail(ctx, notify.CredentialsEmail{
		To:         event.CustomerEmail,
		BrandLabel: brandLabel,
		PlanLabel:  event.PlanLabel,
		Quantity:   len(result.AccessURLs),
		AccessURLs: result.AccessURLs,
	})
	if err != nil {
		o.metrics.NotificationFailures.Inc()
		log.Error().
			Err(err).
			Str("paymentEventId", event.PaymentEventID).
			Str("customerEmail", event.CustomerEmail).
			Msg("fulfillment email failed; credentials remain committed")
	}
}
