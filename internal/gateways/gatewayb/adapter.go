package gatewayb

import (
	"encoding/json"
	"strings"

	"github.com/karimndoye/sunumarket-backend/internal/gateways"
	"github.com/karimndoye/sunumarket-backend/pkg/enums"
	"github.com/karimndoye/sunumarket-backend/pkg/errors"
)

// webhookPayload mirrors gateway B's wire format, inconsistent casing
// included.
type webhookPayload struct {
	TokenPay          string         `json:"tokenPay"`
	Event             string         `json:"event"`
	Montant           int64          `json:"Montant"`
	Frais             int64          `json:"frais"`
	Currency          string         `json:"currency"`
	Moyen             string         `json:"moyen"`
	NumeroTransaction string         `json:"numeroTransaction"`
	PersonalInfo      []personalInfo `json:"personal_Info"`
}

type personalInfo struct {
	OrderID string `json:"orderId"`
	Phone   string `json:"phone"`
}

type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Gateway() enums.Gateway {
	return enums.GatewayB
}

// Normalize maps a gateway B webhook body onto the canonical outcome. The
// tokenPay field is the gateway's transaction identifier.
func (a *Adapter) Normalize(raw []byte) (*gateways.PaymentOutcome, error) {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "malformed gateway B payload")
	}
	if strings.TrimSpace(payload.TokenPay) == "" {
		return nil, errors.New(errors.CodeValidation, "gateway B payload missing tokenPay")
	}

	return &gateways.PaymentOutcome{
		Gateway:              enums.GatewayB,
		GatewayTransactionID: payload.TokenPay,
		Status:               mapEvent(payload.Event),
		AmountCents:          payload.Montant,
		Currency:             payload.Currency,
		RawPayload:           json.RawMessage(raw),
	}, nil
}

func mapEvent(event string) enums.TransactionStatus {
	switch strings.ToLower(strings.TrimSpace(event)) {
	case "payin.session.completed":
		return enums.TransactionStatusPaid
	case "payin.session.cancelled":
		return enums.TransactionStatusCancelled
	case "payin.session.pending":
		return enums.TransactionStatusPending
	default:
		return enums.TransactionStatusPending
	}
}
