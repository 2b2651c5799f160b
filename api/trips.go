package api

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// TMS talks to the trip-management service: trips with their status
// timelines, and the orders assigned to them.
type TMS struct {
	client *Client
}

// NewTMS creates a trip-management service client.
func NewTMS(client *Client) *TMS {
	return &TMS{client: client}
}

type TripStatus string

const (
	TripStatusPlanned   TripStatus = "planned"
	TripStatusLoading   TripStatus = "loading"
	TripStatusEnRoute   TripStatus = "en_route"
	TripStatusDelivered TripStatus = "delivered"
	TripStatusCancelled TripStatus = "cancelled"
)

// TripEvent is one entry in a trip's status timeline.
type TripEvent struct {
	Status TripStatus `json:"status"`
	At     time.Time  `json:"at"`
	Note   string     `json:"note,omitempty"`
}

type Trip struct {
	ID           string      `json:"id,omitempty"`
	VehicleID    string      `json:"vehicle_id"`
	DriverID     string      `json:"driver_id"`
	FromBranchID string      `json:"from_branch_id"`
	ToBranchID   string      `json:"to_branch_id"`
	Status       TripStatus  `json:"status"`
	Events       []TripEvent `json:"events,omitempty"`
}

type Order struct {
	ID         string  `json:"id,omitempty"`
	CustomerID string  `json:"customer_id"`
	ProductID  string  `json:"product_id"`
	Quantity   int     `json:"quantity"`
	WeightKG   float64 `json:"weight_kg"`
	Status     string  `json:"status,omitempty"`
	TripID     string  `json:"trip_id,omitempty"`
}

func (t *TMS) ListTrips(ctx context.Context, params ListParams) (*Page[Trip], error) {
	var page Page[Trip]
	if err := t.client.do(ctx, http.MethodGet, "/api/trips", params.query(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (t *TMS) GetTrip(ctx context.Context, id string) (*Trip, error) {
	var trip Trip
	if err := t.client.do(ctx, http.MethodGet, "/api/trips/"+id, nil, nil, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

// UpdateTripStatus appends a status event to the trip's timeline.
func (t *TMS) UpdateTripStatus(ctx context.Context, id string, status TripStatus, note string) (*Trip, error) {
	body := TripEvent{Status: status, At: time.Now().UTC(), Note: note}

	var trip Trip
	if err := t.client.do(ctx, http.MethodPost, "/api/trips/"+id+"/status", nil, body, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

// ListOrders lists orders, optionally restricted to a status.
func (t *TMS) ListOrders(ctx context.Context, status string, params ListParams) (*Page[Order], error) {
	query := params.query()
	if status != "" {
		query.Set("status", status)
	}

	var page Page[Order]
	if err := t.client.do(ctx, http.MethodGet, "/api/orders", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (t *TMS) CreateOrder(ctx context.Context, order Order) (*Order, error) {
	var created Order
	if err := t.client.do(ctx, http.MethodPost, "/api/orders", nil, order, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// AssignOrder places an order on a trip.
func (t *TMS) AssignOrder(ctx context.Context, orderID, tripID string) (*Order, error) {
	query := url.Values{"trip_id": []string{tripID}}

	var assigned Order
	if err := t.client.do(ctx, http.MethodPost, "/api/orders/"+orderID+"/assign", query, nil, &assigned); err != nil {
		return nil, err
	}
	return &assigned, nil
}
