package model

import (
	"encoding/json"
	"time"
)

// Fulfillment is the durable idempotency record for one payment event.
// The first successful fulfillment stores its result here; a replayed
// webhook for the same event returns the stored result unchanged.
type Fulfillment struct {
	PaymentEventID string          `db:"payment_event_id" json:"paymentEventId"`
	Kind           PurchaseKind    `db:"kind" json:"kind"`
	Result         json.RawMessage `db:"result" json:"result"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

// PaymentEvent is the payment-confirmed event consumed from the payment
// collaborator's webhook.
type PaymentEvent struct {
	PaymentEventID string       `json:"paymentEventId"`
	PurchaseKind   PurchaseKind `json:"purchaseKind"`
	PartnerID      *string      `json:"partnerId,omitempty"`
	Quantity       int          `json:"quantity"`
	CustomerEmail  string       `json:"customerEmail,omitempty"`
	PlanLabel      string       `json:"planLabel"`
	// TTLDays overrides the partner-class TTL for a bulk purchase.
	// Zero means the class default.
	TTLDays int `json:"ttlDays,omitempty"`
}
