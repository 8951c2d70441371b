package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/nutridesk/nutridesk/internal/billing/domain"
	"github.com/nutridesk/nutridesk/internal/clock"
	"github.com/nutridesk/nutridesk/internal/config"
	obsmiddleware "github.com/nutridesk/nutridesk/internal/observability/logger"
	plandomain "github.com/nutridesk/nutridesk/internal/plan/domain"
	tenantdomain "github.com/nutridesk/nutridesk/internal/tenant/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.ListenAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	clock      clock.Clock
	billingSvc billingdomain.Service
	tenantSvc  tenantdomain.Service
	planSvc    plandomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	BillingSvc billingdomain.Service
	TenantSvc  tenantdomain.Service
	PlanSvc    plandomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http"),
		clock:      p.Clock,
		billingSvc: p.BillingSvc,
		tenantSvc:  p.TenantSvc,
		planSvc:    p.PlanSvc,
	}

	svc.registerWebhookRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.GET("/webhook", s.WebhookLiveness)
	s.engine.POST("/webhook", s.HandleStripeWebhook)
}

func (s *Server) registerAdminRoutes() {
	api := s.engine.Group("/api/v1", s.APIKeyRequired())

	api.GET("/tenants", s.ListTenants)
	api.POST("/tenants", s.CreateTenant)
	api.GET("/tenants/:id", s.GetTenantByID)
	api.GET("/tenants/:id/events", s.ListTenantEvents)

	api.GET("/plans", s.ListPlans)
	api.POST("/plans", s.CreatePlan)
}
