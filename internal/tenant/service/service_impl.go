package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/nutridesk/nutridesk/internal/clock"
	tenantdomain "github.com/nutridesk/nutridesk/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  tenantdomain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  tenantdomain.Repository
	clock clock.Clock
}

func NewService(p Params) tenantdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tenant.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

// Create registers a new practice account. The subscription record starts in
// trialing with no trial expiry; the reconciler stamps trial dates on the
// first checkout completion.
func (s *Service) Create(ctx context.Context, req tenantdomain.CreateTenantRequest) (*tenantdomain.Tenant, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if name == "" || email == "" {
		return nil, tenantdomain.ErrInvalidTenant
	}

	now := s.clock.Now()
	tenant := &tenantdomain.Tenant{
		ID:                 s.genID.Generate(),
		Name:               name,
		Email:              email,
		SubscriptionStatus: tenantdomain.SubscriptionStatusTrialing,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Insert(ctx, s.db, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*tenantdomain.Tenant, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, tenantdomain.ErrInvalidTenant
	}

	tenant, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, tenantdomain.ErrTenantNotFound
	}
	return tenant, nil
}

func (s *Service) List(ctx context.Context) ([]tenantdomain.Tenant, error) {
	return s.repo.List(ctx, s.db)
}
