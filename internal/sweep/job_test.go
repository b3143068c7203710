package sweep

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/karimndoye/sunumarket-backend/internal/gateways"
	"github.com/karimndoye/sunumarket-backend/internal/reconcile"
	"github.com/karimndoye/sunumarket-backend/pkg/db/models"
	"github.com/karimndoye/sunumarket-backend/pkg/enums"
	"github.com/karimndoye/sunumarket-backend/pkg/errors"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
)

type fakeLister struct {
	txns []models.PaymentTransaction
	err  error
}

func (f *fakeLister) ListPendingCreatedAfter(context.Context, time.Time) ([]models.PaymentTransaction, error) {
	return f.txns, f.err
}

type fakePoller struct {
	gateway  enums.Gateway
	statuses map[string]enums.TransactionStatus
	errs     map[string]error
	calls    int
}

func (f *fakePoller) Gateway() enums.Gateway {
	return f.gateway
}

func (f *fakePoller) QueryStatus(_ context.Context, id string) (*gateways.PaymentOutcome, error) {
	f.calls++
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	return &gateways.PaymentOutcome{
		Gateway:              f.gateway,
		GatewayTransactionID: id,
		Status:               f.statuses[id],
	}, nil
}

type fakeReconciler struct {
	results map[string]*reconcile.Result
	errs    map[string]error
	applied []string
}

func (f *fakeReconciler) Apply(_ context.Context, outcome *gateways.PaymentOutcome) (*reconcile.Result, error) {
	f.applied = append(f.applied, outcome.GatewayTransactionID)
	if err, ok := f.errs[outcome.GatewayTransactionID]; ok {
		return nil, err
	}
	if result, ok := f.results[outcome.GatewayTransactionID]; ok {
		return result, nil
	}
	return &reconcile.Result{Outcome: reconcile.OutcomeApplied}, nil
}

func pendingTxn(gateway enums.Gateway, id string) models.PaymentTransaction {
	return models.PaymentTransaction{
		ID:                   uuid.New(),
		OrderID:              uuid.New(),
		Gateway:              gateway,
		GatewayTransactionID: id,
		Status:               enums.TransactionStatusPending,
		AmountCents:          100000,
	}
}

func newTestJob(t *testing.T, lister *fakeLister, poller *fakePoller, rec *fakeReconciler) *Job {
	t.Helper()
	registry := gateways.NewRegistry()
	if poller != nil {
		registry.RegisterPoller(poller)
	}
	job, err := NewJob(JobParams{
		Transactions: lister,
		Registry:     registry,
		Reconciler:   rec,
		Logger:       logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Lookback:     24 * time.Hour,
		ItemTimeout:  time.Second,
	})
	require.NoError(t, err)
	return job
}

func TestRun_SettlesPendingTransactions(t *testing.T) {
	lister := &fakeLister{txns: []models.PaymentTransaction{
		pendingTxn(enums.GatewayB, "tok_1"),
		pendingTxn(enums.GatewayB, "tok_2"),
	}}
	poller := &fakePoller{
		gateway: enums.GatewayB,
		statuses: map[string]enums.TransactionStatus{
			"tok_1": enums.TransactionStatusPaid,
			"tok_2": enums.TransactionStatusPending,
		},
	}
	rec := &fakeReconciler{results: map[string]*reconcile.Result{
		"tok_2": {Outcome: reconcile.OutcomeDuplicate},
	}}

	job := newTestJob(t, lister, poller, rec)
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, []string{"tok_1", "tok_2"}, rec.applied)
	require.Equal(t, 2, poller.calls)
}

func TestRun_OneBadItemDoesNotStopTheSweep(t *testing.T) {
	lister := &fakeLister{txns: []models.PaymentTransaction{
		pendingTxn(enums.GatewayB, "tok_bad"),
		pendingTxn(enums.GatewayB, "tok_good"),
	}}
	poller := &fakePoller{
		gateway:  enums.GatewayB,
		statuses: map[string]enums.TransactionStatus{"tok_good": enums.TransactionStatusPaid},
		errs:     map[string]error{"tok_bad": errors.New(errors.CodeDependency, "gateway down")},
	}
	rec := &fakeReconciler{}

	job := newTestJob(t, lister, poller, rec)
	err := job.Run(context.Background())
	require.Error(t, err)

	// The good item still settled.
	require.Equal(t, []string{"tok_good"}, rec.applied)
}

func TestRun_ReconcileErrorAggregated(t *testing.T) {
	lister := &fakeLister{txns: []models.PaymentTransaction{
		pendingTxn(enums.GatewayB, "tok_1"),
		pendingTxn(enums.GatewayB, "tok_2"),
	}}
	poller := &fakePoller{
		gateway: enums.GatewayB,
		statuses: map[string]enums.TransactionStatus{
			"tok_1": enums.TransactionStatusPaid,
			"tok_2": enums.TransactionStatusPaid,
		},
	}
	rec := &fakeReconciler{errs: map[string]error{
		"tok_1": errors.New(errors.CodeLedgerInconsistency, "held"),
	}}

	job := newTestJob(t, lister, poller, rec)
	err := job.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{"tok_1", "tok_2"}, rec.applied)
}

func TestRun_WebhookOnlyGatewaySkipped(t *testing.T) {
	// Gateway A has no status API; its pending rows are skipped silently.
	lister := &fakeLister{txns: []models.PaymentTransaction{
		pendingTxn(enums.GatewayA, "txn_a"),
	}}
	rec := &fakeReconciler{}

	job := newTestJob(t, lister, nil, rec)
	require.NoError(t, job.Run(context.Background()))
	require.Empty(t, rec.applied)
}

func TestRun_ListErrorPropagates(t *testing.T) {
	lister := &fakeLister{err: errors.New(errors.CodeInternal, "db down")}
	job := newTestJob(t, lister, nil, &fakeReconciler{})
	require.Error(t, job.Run(context.Background()))
}

func TestRun_CancelledContextStops(t *testing.T) {
	lister := &fakeLister{txns: []models.PaymentTransaction{
		pendingTxn(enums.GatewayB, "tok_1"),
		pendingTxn(enums.GatewayB, "tok_2"),
	}}
	poller := &fakePoller{gateway: enums.GatewayB, statuses: map[string]enums.TransactionStatus{}}
	rec := &fakeReconciler{}
	job := newTestJob(t, lister, poller, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, job.Run(ctx))
	require.Empty(t, rec.applied)
}
