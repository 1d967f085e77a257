package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/reportlens/securelink-server-go/internal/audit"
	apperrors "github.com/reportlens/securelink-server-go/internal/errors"
	"github.com/reportlens/securelink-server-go/internal/model"
	"github.com/reportlens/securelink-server-go/internal/repository"
)

// PartnerService manages the registry of organizations that own
// secure-link pools.
type PartnerService struct {
	partners repository.PartnerRepository
}

func NewPartnerService(partners repository.PartnerRepository) *PartnerService {
	return &PartnerService{partners: partners}
}

func (s *PartnerService) Create(ctx context.Context, name, brandLabel string) (*model.Partner, error) {
	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}
	if brandLabel == "" {
		brandLabel = name
	}

	partner, err := s.partners.Create(ctx, model.CreatePartnerParams{
		ID:         uuid.NewString(),
		Name:       name,
		BrandLabel: brandLabel,
	})
	if err != nil {
		return nil, fmt.Errorf("create partner: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventPartnerCreate,
		PartnerID: partner.ID,
	})
	log.Info().Str("partnerId", partner.ID).Str("name", name).Msg("partner created")

	return partner, nil
}

func (s *PartnerService) Get(ctx context.Context, id string) (*model.Partner, error) {
	partner, err := s.partners.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find partner: %w", err)
	}
	if partner == nil {
		return nil, apperrors.NotFound("Partner")
	}
	return partner, nil
}

func (s *PartnerService) List(ctx context.Context) ([]model.Partner, error) {
	return s.partners.List(ctx)
}
