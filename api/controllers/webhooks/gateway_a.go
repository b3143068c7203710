package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"github.com/karimndoye/sunumarket-backend/api/responses"
	"github.com/karimndoye/sunumarket-backend/internal/gateways/gatewaya"
	"github.com/karimndoye/sunumarket-backend/pkg/errors"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
)

const SignatureHeader = "X-Gateway-Signature"

// GatewayAController receives gateway A's push notifications.
type GatewayAController struct {
	adapter       *gatewaya.Adapter
	reconciler    Reconciler
	logger        *logger.Logger
	webhookSecret string
}

type GatewayAParams struct {
	Adapter       *gatewaya.Adapter
	Reconciler    Reconciler
	Logger        *logger.Logger
	WebhookSecret string
}

func NewGatewayAController(params GatewayAParams) (*GatewayAController, error) {
	if params.Adapter == nil {
		return nil, fmt.Errorf("adapter is required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &GatewayAController{
		adapter:       params.Adapter,
		reconciler:    params.Reconciler,
		logger:        params.Logger,
		webhookSecret: params.WebhookSecret,
	}, nil
}

// Handle processes one webhook delivery. Replays and out-of-order reports
// resolve to 200 so the gateway stops retrying.
func (c *GatewayAController) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.Error(w, errors.Wrap(errors.CodeValidation, err, "reading webhook body"))
		return
	}

	if !c.verifySignature(body, r.Header.Get(SignatureHeader)) {
		c.logger.Warn(r.Context(), "gateway A webhook signature mismatch")
		responses.Error(w, errors.New(errors.CodeValidation, "invalid webhook signature"))
		return
	}

	outcome, err := c.adapter.Normalize(body)
	if err != nil {
		responses.Error(w, err)
		return
	}

	writeReconcileResponse(w, r, c.logger, c.reconciler, outcome)
}

func (c *GatewayAController) verifySignature(body []byte, signature string) bool {
	if c.webhookSecret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
