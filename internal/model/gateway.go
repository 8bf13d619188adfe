package model

import (
	"encoding/json"
	"fmt"
)

// Gateway payment statuses that count as a successful payment.
const (
	GatewayStatusCaptured   = "captured"
	GatewayStatusPaid       = "paid"
	GatewayStatusAuthorized = "authorized"
)

type gatewayPaymentEntity struct {
	ID             string `json:"id"`
	GatewayOrderID string `json:"order_id"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Email          string `json:"email"`
	Contact        string `json:"contact"`
}

type gatewayOrderEntity struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// webhookEnvelope covers the shapes the gateway has been observed to send:
// the documented payload.payment.entity / payload.order.entity nesting, and
// an older flat shape with the payment entity directly under payload.
type webhookEnvelope struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payload struct {
		gatewayPaymentEntity
		Payment struct {
			Entity gatewayPaymentEntity `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity gatewayOrderEntity `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// PaymentEvent is the normalized form of a webhook body. Everything past the
// HTTP boundary operates on this struct only.
type PaymentEvent struct {
	EventID        string
	Event          string
	PaymentID      string
	GatewayOrderID string
	Status         string
	Amount         int64
	Currency       string
	Email          string
	Contact        string
}

// ParseWebhookEvent decodes a raw webhook body into a PaymentEvent, picking
// each field from the first location that carries it.
func ParseWebhookEvent(body []byte) (*PaymentEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	// fields are picked per-location: the documented nesting wins, the
	// flat legacy shape fills whatever it left empty
	payment := env.Payload.Payment.Entity
	flat := env.Payload.gatewayPaymentEntity
	if payment.ID == "" {
		payment.ID = flat.ID
	}
	if payment.GatewayOrderID == "" {
		payment.GatewayOrderID = flat.GatewayOrderID
	}
	if payment.Status == "" {
		payment.Status = flat.Status
	}
	if payment.Amount == 0 {
		payment.Amount = flat.Amount
	}
	if payment.Currency == "" {
		payment.Currency = flat.Currency
	}
	if payment.Email == "" {
		payment.Email = flat.Email
	}
	if payment.Contact == "" {
		payment.Contact = flat.Contact
	}
	order := env.Payload.Order.Entity

	ev := &PaymentEvent{
		EventID:        env.ID,
		Event:          env.Event,
		PaymentID:      payment.ID,
		GatewayOrderID: payment.GatewayOrderID,
		Status:         payment.Status,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		Email:          payment.Email,
		Contact:        payment.Contact,
	}

	if ev.GatewayOrderID == "" {
		ev.GatewayOrderID = order.ID
	}
	if ev.Status == "" {
		ev.Status = order.Status
	}
	if ev.Amount == 0 {
		ev.Amount = order.Amount
	}
	if ev.Currency == "" {
		ev.Currency = order.Currency
	}

	if ev.GatewayOrderID == "" && ev.PaymentID == "" {
		return nil, fmt.Errorf("webhook payload carries no order or payment id")
	}

	return ev, nil
}

// OrderStatus maps the gateway's payment status onto the order state machine.
// Unknown statuses pass through unchanged.
func (e *PaymentEvent) OrderStatus() string {
	switch e.Status {
	case GatewayStatusCaptured, GatewayStatusPaid, GatewayStatusAuthorized:
		return OrderStatusSuccess
	case "failed":
		return OrderStatusFailed
	default:
		return e.Status
	}
}
