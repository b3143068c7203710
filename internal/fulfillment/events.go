package fulfillment

import "github.com/karimndoye/sunumarket-backend/pkg/types"

// EventType labels downstream messages produced after a successful payment.
type EventType string

const (
	EventPaymentSuccess         EventType = "payment_success"
	EventDigitalProductDelivery EventType = "digital_product_delivery"
)

// Event is the message published to the notification topic. To is the
// customer email the notification worker delivers to.
type Event struct {
	Type EventType      `json:"type"`
	To   string         `json:"to"`
	Data map[string]any `json:"data"`
}

// PaymentSuccessEvent builds the confirmation message for any paid order.
func PaymentSuccessEvent(to, orderNumber string, amountCents int64, currency string) Event {
	return Event{
		Type: EventPaymentSuccess,
		To:   to,
		Data: map[string]any{
			"orderNumber": orderNumber,
			"amountCents": amountCents,
			"currency":    currency,
		},
	}
}

// DigitalDeliveryEvent builds the download-links message for a paid digital
// order.
func DigitalDeliveryEvent(to, orderNumber string, items types.DigitalItems) Event {
	return Event{
		Type: EventDigitalProductDelivery,
		To:   to,
		Data: map[string]any{
			"orderNumber": orderNumber,
			"items":       items,
		},
	}
}
