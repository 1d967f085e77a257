package model

// CredentialState is the single lifecycle state of a secure link.
// Transitions are one-directional: unassigned -> assigned -> redeemed,
// with expired reachable from unassigned or assigned only.
type CredentialState string

const (
	StateUnassigned CredentialState = "unassigned"
	StateAssigned   CredentialState = "assigned"
	StateRedeemed   CredentialState = "redeemed"
	StateExpired    CredentialState = "expired"
)

// CredentialClass selects the TTL policy for a credential.
type CredentialClass string

const (
	ClassPartner CredentialClass = "partner"
	ClassStarter CredentialClass = "starter"
)

// PurchaseKind identifies which fulfillment flow a payment event drives.
type PurchaseKind string

const (
	PurchasePartnerBulk PurchaseKind = "partnerBulk"
	PurchaseCustomer    PurchaseKind = "customer"
	PurchaseStarter     PurchaseKind = "starter"
)

func (k PurchaseKind) Valid() bool {
	switch k {
	case PurchasePartnerBulk, PurchaseCustomer, PurchaseStarter:
		return true
	}
	return false
}
