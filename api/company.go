package api

import (
	"context"
	"net/http"
	"time"
)

// Company talks to the company master-data service: branches, customers,
// vehicles, products and users.
type Company struct {
	client *Client
}

// NewCompany creates a company service client.
func NewCompany(client *Client) *Company {
	return &Company{client: client}
}

type Branch struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

type Customer struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	GSTIN    string `json:"gstin,omitempty"`
	BranchID string `json:"branch_id"`
}

type Vehicle struct {
	ID           string  `json:"id,omitempty"`
	Registration string  `json:"registration"`
	Model        string  `json:"model"`
	CapacityKG   float64 `json:"capacity_kg"`
	BranchID     string  `json:"branch_id"`
	Active       bool    `json:"active"`
}

type Product struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	WeightKG float64 `json:"weight_kg"`
}

type User struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	BranchID string `json:"branch_id"`
}

func (c *Company) ListBranches(ctx context.Context, params ListParams) (*Page[Branch], error) {
	var page Page[Branch]
	if err := c.client.do(ctx, http.MethodGet, "/api/branches", params.query(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Company) GetBranch(ctx context.Context, id string) (*Branch, error) {
	var branch Branch
	if err := c.client.do(ctx, http.MethodGet, "/api/branches/"+id, nil, nil, &branch); err != nil {
		return nil, err
	}
	return &branch, nil
}

func (c *Company) CreateBranch(ctx context.Context, branch Branch) (*Branch, error) {
	var created Branch
	if err := c.client.do(ctx, http.MethodPost, "/api/branches", nil, branch, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Company) UpdateBranch(ctx context.Context, id string, branch Branch) (*Branch, error) {
	var updated Branch
	if err := c.client.do(ctx, http.MethodPut, "/api/branches/"+id, nil, branch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Company) DeleteBranch(ctx context.Context, id string) error {
	return c.client.do(ctx, http.MethodDelete, "/api/branches/"+id, nil, nil, nil)
}

func (c *Company) ListCustomers(ctx context.Context, params ListParams) (*Page[Customer], error) {
	var page Page[Customer]
	if err := c.client.do(ctx, http.MethodGet, "/api/customers", params.query(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Company) CreateCustomer(ctx context.Context, customer Customer) (*Customer, error) {
	var created Customer
	if err := c.client.do(ctx, http.MethodPost, "/api/customers", nil, customer, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Company) ListVehicles(ctx context.Context, params ListParams) (*Page[Vehicle], error) {
	var page Page[Vehicle]
	if err := c.client.do(ctx, http.MethodGet, "/api/vehicles", params.query(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Company) CreateVehicle(ctx context.Context, vehicle Vehicle) (*Vehicle, error) {
	var created Vehicle
	if err := c.client.do(ctx, http.MethodPost, "/api/vehicles", nil, vehicle, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Company) ListProducts(ctx context.Context, params ListParams) (*Page[Product], error) {
	var page Page[Product]
	if err := c.client.do(ctx, http.MethodGet, "/api/products", params.query(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Company) CreateProduct(ctx context.Context, product Product) (*Product, error) {
	var created Product
	if err := c.client.do(ctx, http.MethodPost, "/api/products", nil, product, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Company) ListUsers(ctx context.Context, params ListParams) (*Page[User], error) {
	var page Page[User]
	if err := c.client.do(ctx, http.MethodGet, "/api/users", params.query(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Company) CreateUser(ctx context.Context, user User) (*User, error) {
	var created User
	if err := c.client.do(ctx, http.MethodPost, "/api/users", nil, user, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
