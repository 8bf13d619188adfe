package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookEvent(t *testing.T) {
	tests := []struct {
		name string
		body string
		want PaymentEvent
	}{
		{
			name: "documented_nesting",
			body: `{
				"id": "evt_1",
				"event": "payment.captured",
				"payload": {
					"payment": {
						"entity": {
							"id": "pay_1",
							"order_id": "gw_1",
							"status": "captured",
							"amount": 500,
							"currency": "INR",
							"email": "a@b.com",
							"contact": "+91 98-111 22222"
						}
					}
				}
			}`,
			want: PaymentEvent{
				EventID:        "evt_1",
				Event:          "payment.captured",
				PaymentID:      "pay_1",
				GatewayOrderID: "gw_1",
				Status:         "captured",
				Amount:         500,
				Currency:       "INR",
				Email:          "a@b.com",
				Contact:        "+91 98-111 22222",
			},
		},
		{
			name: "flat_legacy_shape",
			body: `{
				"event": "payment.captured",
				"payload": {
					"id": "pay_2",
					"order_id": "gw_2",
					"status": "captured",
					"amount": 700,
					"currency": "INR"
				}
			}`,
			want: PaymentEvent{
				Event:          "payment.captured",
				PaymentID:      "pay_2",
				GatewayOrderID: "gw_2",
				Status:         "captured",
				Amount:         700,
				Currency:       "INR",
			},
		},
		{
			// the nested entity carries order_id and status but the flat
			// shape carries the payment id; each field keeps its own source
			name: "mixed_nested_and_flat_fields",
			body: `{
				"event": "payment.captured",
				"payload": {
					"id": "pay_5",
					"payment": {
						"entity": {
							"order_id": "gw_5",
							"status": "captured",
							"amount": 1100,
							"currency": "INR",
							"email": "c@d.com"
						}
					}
				}
			}`,
			want: PaymentEvent{
				Event:          "payment.captured",
				PaymentID:      "pay_5",
				GatewayOrderID: "gw_5",
				Status:         "captured",
				Amount:         1100,
				Currency:       "INR",
				Email:          "c@d.com",
			},
		},
		{
			name: "order_entity_fallback",
			body: `{
				"event": "order.paid",
				"payload": {
					"payment": {
						"entity": {
							"id": "pay_3"
						}
					},
					"order": {
						"entity": {
							"id": "gw_3",
							"status": "paid",
							"amount": 900,
							"currency": "INR"
						}
					}
				}
			}`,
			want: PaymentEvent{
				Event:          "order.paid",
				PaymentID:      "pay_3",
				GatewayOrderID: "gw_3",
				Status:         "paid",
				Amount:         900,
				Currency:       "INR",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWebhookEvent([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseWebhookEventRejectsEmpty(t *testing.T) {
	_, err := ParseWebhookEvent([]byte(`{"event":"ping","payload":{}}`))
	assert.Error(t, err)

	_, err = ParseWebhookEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestPaymentEventOrderStatus(t *testing.T) {
	tests := []struct {
		gateway string
		want    string
	}{
		{"captured", OrderStatusSuccess},
		{"paid", OrderStatusSuccess},
		{"authorized", OrderStatusSuccess},
		{"failed", OrderStatusFailed},
		{"created", "created"}, // unknown statuses pass through
	}

	for _, tt := range tests {
		ev := PaymentEvent{Status: tt.gateway}
		assert.Equal(t, tt.want, ev.OrderStatus(), tt.gateway)
	}
}
