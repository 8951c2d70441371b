package domain

import (
	"context"
	"errors"
)

type CreateTenantRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Service interface {
	Create(ctx context.Context, req CreateTenantRequest) (*Tenant, error)
	GetByID(ctx context.Context, id string) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
}

var (
	ErrInvalidTenant  = errors.New("invalid_tenant")
	ErrTenantNotFound = errors.New("tenant_not_found")
)
