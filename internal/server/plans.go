package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	plandomain "github.com/nutridesk/nutridesk/internal/plan/domain"
)

type planResponse struct {
	ID              string    `json:"id"`
	PriceID         string    `json:"price_id"`
	Name            string    `json:"name"`
	BillingInterval *string   `json:"billing_interval,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toPlanResponse(entry plandomain.CatalogEntry) planResponse {
	return planResponse{
		ID:              entry.ID.String(),
		PriceID:         entry.PriceID,
		Name:            entry.Name,
		BillingInterval: entry.BillingInterval,
		CreatedAt:       entry.CreatedAt,
	}
}

func (s *Server) CreatePlan(c *gin.Context) {
	var req plandomain.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entry, err := s.planSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toPlanResponse(*entry))
}

func (s *Server) ListPlans(c *gin.Context) {
	entries, err := s.planSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]planResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toPlanResponse(entry))
	}

	c.JSON(http.StatusOK, gin.H{"plans": out})
}
