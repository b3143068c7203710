package sweep

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/karimndoye/sunumarket-backend/internal/gateways"
	"github.com/karimndoye/sunumarket-backend/internal/reconcile"
	"github.com/karimndoye/sunumarket-backend/pkg/db/models"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
	"github.com/karimndoye/sunumarket-backend/pkg/metrics"
)

const JobName = "poll-sweep"

type pendingLister interface {
	ListPendingCreatedAfter(ctx context.Context, cutoff time.Time) ([]models.PaymentTransaction, error)
}

type reconciler interface {
	Apply(ctx context.Context, outcome *gateways.PaymentOutcome) (*reconcile.Result, error)
}

// Job polls the gateways for transactions stuck in pending, catching
// settlements whose webhooks never arrived. Items are isolated: one bad
// transaction never stops the rest of the sweep.
type Job struct {
	transactions pendingLister
	registry     *gateways.Registry
	reconciler   reconciler
	logger       *logger.Logger
	metrics      *metrics.SweepMetrics
	lookback     time.Duration
	itemTimeout  time.Duration
}

type JobParams struct {
	Transactions pendingLister
	Registry     *gateways.Registry
	Reconciler   reconciler
	Logger       *logger.Logger
	Metrics      *metrics.SweepMetrics
	Lookback     time.Duration
	ItemTimeout  time.Duration
}

func NewJob(params JobParams) (*Job, error) {
	if params.Transactions == nil {
		return nil, fmt.Errorf("transactions lister is required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("gateway registry is required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if params.Lookback <= 0 {
		return nil, fmt.Errorf("lookback must be positive")
	}
	itemTimeout := params.ItemTimeout
	if itemTimeout <= 0 {
		itemTimeout = 10 * time.Second
	}
	return &Job{
		transactions: params.Transactions,
		registry:     params.Registry,
		reconciler:   params.Reconciler,
		logger:       params.Logger,
		metrics:      params.Metrics,
		lookback:     params.Lookback,
		itemTimeout:  itemTimeout,
	}, nil
}

func (j *Job) Name() string {
	return JobName
}

// Run sweeps every pending transaction inside the lookback window. Errors
// are aggregated so a failure on one item still lets the others settle.
func (j *Job) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.lookback)
	pending, err := j.transactions.ListPendingCreatedAfter(ctx, cutoff)
	if err != nil {
		return err
	}

	meta := map[string]any{"pending": len(pending), "cutoff": cutoff.Format(time.RFC3339)}
	j.logger.Info(j.logger.WithFields(ctx, meta), "poll sweep started")

	var errs []error
	for i := range pending {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := j.sweepOne(ctx, &pending[i]); err != nil {
			errs = append(errs, err)
		}
	}

	combined := multierr.Combine(errs...)
	if combined != nil {
		j.logger.Error(ctx, "poll sweep finished with errors", combined)
	}
	return combined
}

func (j *Job) sweepOne(ctx context.Context, txn *models.PaymentTransaction) error {
	ctx = j.logger.WithGateway(ctx, txn.Gateway.String())
	ctx = j.logger.WithTransactionID(ctx, txn.GatewayTransactionID)

	poller, ok := j.registry.Poller(txn.Gateway)
	if !ok {
		// Webhook-only gateway; nothing to poll.
		j.metrics.IncItem(JobName, "no_poller")
		return nil
	}

	itemCtx, cancel := context.WithTimeout(ctx, j.itemTimeout)
	defer cancel()

	outcome, err := poller.QueryStatus(itemCtx, txn.GatewayTransactionID)
	if err != nil {
		j.metrics.IncItem(JobName, "poll_error")
		j.logger.Error(ctx, "polling gateway status", err)
		return fmt.Errorf("polling %s/%s: %w", txn.Gateway, txn.GatewayTransactionID, err)
	}

	result, err := j.reconciler.Apply(itemCtx, outcome)
	if err != nil {
		j.metrics.IncItem(JobName, "reconcile_error")
		return fmt.Errorf("reconciling %s/%s: %w", txn.Gateway, txn.GatewayTransactionID, err)
	}

	j.metrics.IncItem(JobName, string(result.Outcome))
	return nil
}
