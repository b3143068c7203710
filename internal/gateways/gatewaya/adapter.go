package gatewaya

import (
	"encoding/json"
	"strings"

	"github.com/karimndoye/sunumarket-backend/internal/gateways"
	"github.com/karimndoye/sunumarket-backend/pkg/enums"
	"github.com/karimndoye/sunumarket-backend/pkg/errors"
)

// webhookPayload is the wire shape gateway A posts to us.
type webhookPayload struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Metadata struct {
		OrderID string `json:"order_id"`
	} `json:"metadata"`
}

type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Gateway() enums.Gateway {
	return enums.GatewayA
}

// Normalize maps a gateway A webhook body onto the canonical outcome.
// Unrecognized native statuses map to pending so a newly introduced gateway
// state never flips an order by accident.
func (a *Adapter) Normalize(raw []byte) (*gateways.PaymentOutcome, error) {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "malformed gateway A payload")
	}
	if strings.TrimSpace(payload.ID) == "" {
		return nil, errors.New(errors.CodeValidation, "gateway A payload missing transaction id")
	}

	return &gateways.PaymentOutcome{
		Gateway:              enums.GatewayA,
		GatewayTransactionID: payload.ID,
		Status:               mapStatus(payload.Status),
		AmountCents:          payload.Amount,
		Currency:             payload.Currency,
		RawPayload:           json.RawMessage(raw),
	}, nil
}

func mapStatus(native string) enums.TransactionStatus {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "succeeded", "completed":
		return enums.TransactionStatusPaid
	case "failed":
		return enums.TransactionStatusFailed
	case "cancelled", "canceled":
		return enums.TransactionStatusCancelled
	default:
		return enums.TransactionStatusPending
	}
}
