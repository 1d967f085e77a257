package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const ExpiryJobInterval = 5 * time.Minute

// Fulfillment records older than this are pruned; the payment
// collaborator never replays webhooks anywhere near this late.
const FulfillmentRetention = 90 * 24 * time.Hour

// MaxPurchaseQuantity caps the credential count of a single payment
// event. The payment collaborator is trusted but not unbounded; a
// larger order is split into multiple events.
const MaxPurchaseQuantity = 500

// MaxRequestBodyBytes bounds inbound payloads. Webhook and admin
// bodies are small JSON documents, so 64KB is generous.
const MaxRequestBodyBytes = 64 << 10

// Rate limits on public endpoints
const (
	RedeemLimitPerIP     = 10
	RedeemLimitWindow    = time.Minute
	InventoryLimitPerIP  = 30
	InventoryLimitWindow = time.Minute
)
