package crmapi

import (
	"context"
	"net/http"
	"time"
)

// Resource endpoints consumed on the remote CRM API. Every one of them can
// answer 401, which the client handles globally.
const (
	routeLeads        = "/api/leads"
	routeProducts     = "/api/products"
	routeSalespersons = "/api/salespersons"
)

// Lead is a sales lead scoped to the caller's tenant.
type Lead struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Status     string    `json:"status"`
	Source     string    `json:"source,omitempty"`
	AssignedTo string    `json:"assignedTo,omitempty"`
	TenantID   string    `json:"tenantId"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// Product is a catalogue entry scoped to the caller's tenant.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency,omitempty"`
	TenantID string  `json:"tenantId"`
}

// Salesperson is a sales-team member within the caller's tenant.
type Salesperson struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	TenantID  string `json:"tenantId"`
	AvatarRef string `json:"avatarRef,omitempty"`
}

func (c *Client) Leads(ctx context.Context) ([]Lead, error) {
	var leads []Lead
	if err := c.do(ctx, http.MethodGet, routeLeads, nil, &leads); err != nil {
		return nil, err
	}
	return leads, nil
}

func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.do(ctx, http.MethodGet, routeProducts, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) Salespersons(ctx context.Context) ([]Salesperson, error) {
	var salespersons []Salesperson
	if err := c.do(ctx, http.MethodGet, routeSalespersons, nil, &salespersons); err != nil {
		return nil, err
	}
	return salespersons, nil
}
