package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/nutridesk/nutridesk/internal/clock"
	plandomain "github.com/nutridesk/nutridesk/internal/plan/domain"
	"github.com/nutridesk/nutridesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  plandomain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  plandomain.Repository
	clock clock.Clock
}

func NewService(p Params) plandomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req plandomain.CreatePlanRequest) (*plandomain.CatalogEntry, error) {
	priceID := strings.TrimSpace(req.PriceID)
	name := strings.TrimSpace(req.Name)
	if priceID == "" || name == "" {
		return nil, plandomain.ErrInvalidPlan
	}

	entry := &plandomain.CatalogEntry{
		ID:              s.genID.Generate(),
		PriceID:         priceID,
		Name:            name,
		BillingInterval: req.BillingInterval,
		CreatedAt:       s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, entry); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, plandomain.ErrDuplicatePlan
		}
		return nil, err
	}
	return entry, nil
}

func (s *Service) List(ctx context.Context) ([]plandomain.CatalogEntry, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) ResolvePlanName(ctx context.Context, priceID string) (string, bool, error) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return "", false, nil
	}

	entry, err := s.repo.FindByPriceID(ctx, s.db, priceID)
	if err != nil {
		return "", false, err
	}
	if entry == nil {
		return "", false, nil
	}
	return entry.Name, true, nil
}
