package dto

import (
	"time"

	"storefront-payments/internal/model"
)

// Item is an opaque purchased line entry. Price is minor units.
type Item struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int32  `json:"quantity"`
}

type PreCreateRequest struct {
	Amount   int64   `json:"amount"`
	Currency string  `json:"currency"`
	Items    []*Item `json:"items"`
	UserID   string  `json:"userId,omitempty"`
}

// PreCreateResponse is the gateway order descriptor handed back to the
// storefront client to open the hosted checkout.
type PreCreateResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type SaveOrderRequest struct {
	UserID         string  `json:"userId"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	Items          []*Item `json:"items"`
	GatewayOrderID string  `json:"gatewayOrderId"`
	PaymentID      string  `json:"paymentId"`
	Signature      string  `json:"signature"`
	Status         string  `json:"status"`
	CustomerEmail  string  `json:"customerEmail,omitempty"`
	CustomerPhone  string  `json:"customerPhone,omitempty"`
}

type SaveOrderResponse struct {
	Success bool       `json:"success"`
	Order   *OrderView `json:"order"`
}

type WebhookResponse struct {
	Success bool `json:"success"`
	Updated bool `json:"updated,omitempty"`
	Created bool `json:"created,omitempty"`
}

type VerifyRequest struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	PaymentID      string `json:"paymentId"`
	Signature      string `json:"signature"`
}

type VerifyResponse struct {
	Success bool `json:"success"`
}

type OrderView struct {
	ID             string    `json:"id"`
	GatewayOrderID string    `json:"gatewayOrderId"`
	PaymentID      string    `json:"paymentId,omitempty"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	UserID         string    `json:"userId,omitempty"`
	CustomerEmail  string    `json:"customerEmail,omitempty"`
	CustomerPhone  string    `json:"customerPhone,omitempty"`
	Items          []*Item   `json:"items,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func NewOrderView(order *model.Order, items []*model.OrderItem) *OrderView {
	view := &OrderView{
		ID:             order.ID,
		GatewayOrderID: order.GatewayOrderID,
		Amount:         order.Amount,
		Currency:       order.Currency,
		Status:         order.Status,
		UserID:         order.UserID,
		CustomerEmail:  order.CustomerEmail,
		CustomerPhone:  order.CustomerPhone,
		CreatedAt:      order.CreatedAt,
	}
	if order.PaymentID != nil {
		view.PaymentID = *order.PaymentID
	}
	for _, item := range items {
		view.Items = append(view.Items, &Item{
			Name:     item.Name,
			Price:    item.UnitPrice,
			Quantity: item.Quantity,
		})
	}
	return view
}
