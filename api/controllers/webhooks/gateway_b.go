package webhooks

import (
	"fmt"
	"io"
	"net/http"

	"github.com/karimndoye/sunumarket-backend/api/responses"
	"github.com/karimndoye/sunumarket-backend/internal/gateways/gatewayb"
	"github.com/karimndoye/sunumarket-backend/pkg/errors"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
)

// GatewayBController receives gateway B's push notifications. Gateway B
// signs nothing; the poll sweeper cross-checks its reports against the
// status API.
type GatewayBController struct {
	adapter    *gatewayb.Adapter
	reconciler Reconciler
	logger     *logger.Logger
}

type GatewayBParams struct {
	Adapter    *gatewayb.Adapter
	Reconciler Reconciler
	Logger     *logger.Logger
}

func NewGatewayBController(params GatewayBParams) (*GatewayBController, error) {
	if params.Adapter == nil {
		return nil, fmt.Errorf("adapter is required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &GatewayBController{
		adapter:    params.Adapter,
		reconciler: params.Reconciler,
		logger:     params.Logger,
	}, nil
}

// Handle processes one webhook delivery.
func (c *GatewayBController) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.Error(w, errors.Wrap(errors.CodeValidation, err, "reading webhook body"))
		return
	}

	outcome, err := c.adapter.Normalize(body)
	if err != nil {
		responses.Error(w, err)
		return
	}

	writeReconcileResponse(w, r, c.logger, c.reconciler, outcome)
}
