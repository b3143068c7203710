package webhooks

import (
	"context"
	"net/http"

	"github.com/karimndoye/sunumarket-backend/api/responses"
	"github.com/karimndoye/sunumarket-backend/internal/gateways"
	"github.com/karimndoye/sunumarket-backend/internal/reconcile"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
)

// Reconciler applies a normalized gateway report to local state.
type Reconciler interface {
	Apply(ctx context.Context, outcome *gateways.PaymentOutcome) (*reconcile.Result, error)
}

type receipt struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
}

// writeReconcileResponse runs the reconciler and maps its outcome onto the
// webhook contract: idempotent no-ops are 200s, unknown transactions 404.
func writeReconcileResponse(w http.ResponseWriter, r *http.Request, logg *logger.Logger, rec Reconciler, outcome *gateways.PaymentOutcome) {
	result, err := rec.Apply(r.Context(), outcome)
	if err != nil {
		logg.Error(r.Context(), "webhook reconciliation failed", err)
		responses.Error(w, err)
		return
	}

	if result.Outcome == reconcile.OutcomeNotFound {
		responses.NotFound(w, "unknown gateway transaction")
		return
	}

	responses.JSON(w, http.StatusOK, receipt{
		Received: true,
		Outcome:  string(result.Outcome),
	})
}
