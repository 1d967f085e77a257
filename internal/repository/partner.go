package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/reportlens/securelink-server-go/internal/database"
	"github.com/reportlens/securelink-server-go/internal/model"
)

type PartnerRepository interface {
	Create(ctx context.Context, params model.CreatePartnerParams) (*model.Partner, error)
	FindByID(ctx context.Context, id string) (*model.Partner, error)
	List(ctx context.Context) ([]model.Partner, error)
	WithTx(tx *sqlx.Tx) PartnerRepository
}

type partnerRepo struct {
	db database.DBTX
}

func NewPartnerRepository(db *database.DB) PartnerRepository {
	return &partnerRepo{db: db.DB}
}

func (r *partnerRepo) WithTx(tx *sqlx.Tx) PartnerRepository {
	return &partnerRepo{db: tx}
}

func (r *partnerRepo) Create(ctx context.Context, params model.CreatePartnerParams) (*model.Partner, error) {
	var partner model.Partner
	err := r.db.GetContext(ctx, &partner, `
		INSERT INTO partners (id, name, brand_label)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.ID, params.Name, params.BrandLabel)
	if err != nil {
		return nil, err
	}
	return &partner, nil
}

func (r *partnerRepo) FindByID(ctx context.Context, id string) (*model.Partner, error) {
	var partner model.Partner
	err := r.db.GetContext(ctx, &partner, `
		SELECT * FROM partners WHERE id = $1
	`, id)
	return HandleNotFound(&partner, err)
}

func (r *partnerRepo) List(ctx context.Context) ([]model.Partner, error) {
	var partners []model.Partner
	err := r.db.SelectContext(ctx, &partners, `
		SELECT * FROM partners ORDER BY created_at DESC
	`)
	return partners, err
}
