package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/nutridesk/nutridesk/internal/billing/domain"
	tenantdomain "github.com/nutridesk/nutridesk/internal/tenant/domain"
)

type tenantResponse struct {
	ID                           string     `json:"id"`
	Name                         string     `json:"name"`
	Email                        string     `json:"email"`
	StripeCustomerID             *string    `json:"stripe_customer_id,omitempty"`
	SubscriptionID               *string    `json:"subscription_id,omitempty"`
	SubscriptionStatus           string     `json:"subscription_status"`
	SubscriptionPlan             *string    `json:"subscription_plan,omitempty"`
	SubscriptionCurrentPeriodEnd *time.Time `json:"subscription_current_period_end,omitempty"`
	TrialEndsAt                  *time.Time `json:"trial_ends_at,omitempty"`
	SubscriptionStartedAt        *time.Time `json:"subscription_started_at,omitempty"`
	SubscriptionEndsAt           *time.Time `json:"subscription_ends_at,omitempty"`
	CreatedAt                    time.Time  `json:"created_at"`
	UpdatedAt                    time.Time  `json:"updated_at"`
}

func toTenantResponse(t *tenantdomain.Tenant) tenantResponse {
	return tenantResponse{
		ID:                           t.ID.String(),
		Name:                         t.Name,
		Email:                        t.Email,
		StripeCustomerID:             t.StripeCustomerID,
		SubscriptionID:               t.SubscriptionID,
		SubscriptionStatus:           string(t.SubscriptionStatus),
		SubscriptionPlan:             t.SubscriptionPlan,
		SubscriptionCurrentPeriodEnd: t.SubscriptionCurrentPeriodEnd,
		TrialEndsAt:                  t.TrialEndsAt,
		SubscriptionStartedAt:        t.SubscriptionStartedAt,
		SubscriptionEndsAt:           t.SubscriptionEndsAt,
		CreatedAt:                    t.CreatedAt,
		UpdatedAt:                    t.UpdatedAt,
	}
}

func (s *Server) CreateTenant(c *gin.Context) {
	var req tenantdomain.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tenant, err := s.tenantSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toTenantResponse(tenant))
}

func (s *Server) ListTenants(c *gin.Context) {
	tenants, err := s.tenantSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]tenantResponse, 0, len(tenants))
	for i := range tenants {
		out = append(out, toTenantResponse(&tenants[i]))
	}

	c.JSON(http.StatusOK, gin.H{"tenants": out})
}

func (s *Server) GetTenantByID(c *gin.Context) {
	tenant, err := s.tenantSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTenantResponse(tenant))
}

type eventLogResponse struct {
	ID                     string         `json:"id"`
	EventType              string         `json:"event_type"`
	ProviderEventID        *string        `json:"provider_event_id,omitempty"`
	ProviderSubscriptionID *string        `json:"provider_subscription_id,omitempty"`
	PreviousStatus         *string        `json:"previous_status,omitempty"`
	NewStatus              *string        `json:"new_status,omitempty"`
	PreviousPlan           *string        `json:"previous_plan,omitempty"`
	NewPlan                *string        `json:"new_plan,omitempty"`
	Metadata               map[string]any `json:"metadata,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
}

func (s *Server) ListTenantEvents(c *gin.Context) {
	entries, err := s.billingSvc.ListEventLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]eventLogResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEventLogResponse(entry))
	}

	c.JSON(http.StatusOK, gin.H{"events": out})
}

func toEventLogResponse(entry billingdomain.SubscriptionEventLog) eventLogResponse {
	return eventLogResponse{
		ID:                     entry.ID.String(),
		EventType:              entry.EventType,
		ProviderEventID:        entry.ProviderEventID,
		ProviderSubscriptionID: entry.ProviderSubscriptionID,
		PreviousStatus:         entry.PreviousStatus,
		NewStatus:              entry.NewStatus,
		PreviousPlan:           entry.PreviousPlan,
		NewPlan:                entry.NewPlan,
		Metadata:               entry.Metadata,
		CreatedAt:              entry.CreatedAt,
	}
}
