package model

import "time"

// Partner is an organization that owns a pool of secure-link inventory.
type Partner struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	BrandLabel string    `db:"brand_label" json:"brandLabel"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type CreatePartnerParams struct {
	ID         string
	Name       string
	BrandLabel string
}

// InventorySummary is the derived per-state breakdown of a partner's
// pool, computed from the credentials table rather than maintained as
// separate counters.
type InventorySummary struct {
	Available int `db:"available" json:"available"`
	Assigned  int `db:"assigned" json:"assigned"`
	Redeemed  int `db:"redeemed" json:"redeemed"`
	Expired   int `db:"expired" json:"expired"`
}
