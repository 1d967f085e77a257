package model

import (
	"time"
)

// Credential is a single-use, time-boxed access token ("secure link")
// granting entry to one analysis session. Rows are never hard-deleted;
// they are retained for audit and reporting.
type Credential struct {
	ID               string          `db:"id" json:"id"`
	OwnerPartnerID   *string         `db:"owner_partner_id" json:"ownerPartnerId,omitempty"`
	ChatSessionID    *string         `db:"chat_session_id" json:"chatSessionId,omitempty"`
	State            CredentialState `db:"state" json:"state"`
	BatchLabel       *string         `db:"batch_label" json:"batchLabel,omitempty"`
	AssignedEmail    *string         `db:"assigned_email" json:"assignedEmail,omitempty"`
	AssignedPlan     *string         `db:"assigned_plan" json:"assignedPlan,omitempty"`
	AssignedQuantity *int            `db:"assigned_quantity" json:"assignedQuantity,omitempty"`
	AssignedAt       *time.Time      `db:"assigned_at" json:"assignedAt,omitempty"`
	RedeemedAt       *time.Time      `db:"redeemed_at" json:"redeemedAt,omitempty"`
	ExpiresAt        time.Time       `db:"expires_at" json:"expiresAt"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
}

// Class derives the TTL class from pool ownership. The no-partner
// sentinel (NULL owner) is the starter class.
func (c *Credential) Class() CredentialClass {
	if c.OwnerPartnerID == nil {
		return ClassStarter
	}
	return ClassPartner
}

// IsExpired reports whether the credential is past its TTL at the given
// instant. A redeemed credential keeps its state even past expiry;
// expiry only blocks future redemption attempts.
func (c *Credential) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// IsAssigned reports whether the immutable assignment payload has been set.
func (c *Credential) IsAssigned() bool {
	return c.AssignedAt != nil
}

// CreateBatchParams mints count new unassigned credentials for one pool.
type CreateBatchParams struct {
	OwnerPartnerID *string
	Count          int
	ExpiresAt      time.Time
	BatchLabel     *string
}

// Assignment is the purchase context attached when a credential moves
// from pool inventory to a specific purchase. Set at most once.
type Assignment struct {
	CustomerEmail string
	PlanLabel     string
	Quantity      int
	PurchasedAt   time.Time
}
