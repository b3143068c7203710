package gateways

import (
	"context"
	"encoding/json"

	"github.com/karimndoye/sunumarket-backend/pkg/enums"
)

// PaymentOutcome is the canonical, gateway-agnostic view of a payment
// attempt. Adapters translate gateway-native payloads into this shape and
// nothing downstream ever sees a gateway-native field again.
type PaymentOutcome struct {
	Gateway              enums.Gateway
	GatewayTransactionID string
	Status               enums.TransactionStatus
	AmountCents          int64
	Currency             string
	RawPayload           json.RawMessage
}

// Adapter normalizes a gateway's webhook payload into a PaymentOutcome.
type Adapter interface {
	Gateway() enums.Gateway
	Normalize(raw []byte) (*PaymentOutcome, error)
}

// StatusPoller queries a gateway's API for the current status of a
// transaction. Implemented only by gateways that expose a status endpoint.
type StatusPoller interface {
	Gateway() enums.Gateway
	QueryStatus(ctx context.Context, gatewayTransactionID string) (*PaymentOutcome, error)
}

// Registry holds the configured status pollers keyed by gateway. Webhook
// adapters bind directly to their controllers; only the sweeper needs a
// lookup.
type Registry struct {
	pollers map[enums.Gateway]StatusPoller
}

func NewRegistry() *Registry {
	return &Registry{
		pollers: map[enums.Gateway]StatusPoller{},
	}
}

func (r *Registry) RegisterPoller(poller StatusPoller) {
	r.pollers[poller.Gateway()] = poller
}

func (r *Registry) Poller(gateway enums.Gateway) (StatusPoller, bool) {
	poller, ok := r.pollers[gateway]
	return poller, ok
}
