package reconcile

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/karimndoye/sunumarket-backend/internal/fulfillment"
	"github.com/karimndoye/sunumarket-backend/internal/gateways"
	"github.com/karimndoye/sunumarket-backend/internal/ledger"
	"github.com/karimndoye/sunumarket-backend/internal/orders"
	"github.com/karimndoye/sunumarket-backend/internal/transactions"
	"github.com/karimndoye/sunumarket-backend/pkg/db/models"
	"github.com/karimndoye/sunumarket-backend/pkg/enums"
	"github.com/karimndoye/sunumarket-backend/pkg/errors"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
	"github.com/karimndoye/sunumarket-backend/pkg/types"
)

type gormTxRunner struct {
	conn *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// hookTxRunner fires a callback once before delegating, letting a test
// settle the row between a caller's initial read and its transaction.
type hookTxRunner struct {
	inner  TxRunner
	before func()
}

func (r *hookTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.before != nil {
		before := r.before
		r.before = nil
		before()
	}
	return r.inner.WithTx(ctx, fn)
}

type fakeDispatcher struct {
	events []fulfillment.Event
	err    error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, event fulfillment.Event) error {
	d.events = append(d.events, event)
	return d.err
}

type fixture struct {
	conn       *gorm.DB
	svc        *Service
	params     ServiceParams
	dispatcher *fakeDispatcher
	txRepo     *transactions.Repo
	orderRepo  *orders.Repo
	ledgerRepo *ledger.Repo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=private"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	ddl := `
	CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		vendor_id TEXT,
		total_amount_cents INTEGER NOT NULL,
		currency TEXT NOT NULL DEFAULT 'XOF',
		status TEXT NOT NULL DEFAULT 'pending',
		payment_status TEXT NOT NULL DEFAULT 'pending',
		fulfillment_status TEXT NOT NULL DEFAULT 'unfulfilled',
		digital INTEGER NOT NULL DEFAULT 0,
		digital_items TEXT,
		customer_email TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE payment_transactions (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		gateway TEXT NOT NULL,
		gateway_transaction_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		raw_gateway_payload TEXT,
		amount_cents INTEGER NOT NULL,
		currency TEXT NOT NULL DEFAULT 'XOF',
		settled_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (gateway, gateway_transaction_id)
	);
	CREATE TABLE vendor_ledgers (
		vendor_id TEXT PRIMARY KEY,
		available_balance_cents INTEGER NOT NULL DEFAULT 0,
		pending_balance_cents INTEGER NOT NULL DEFAULT 0,
		total_earned_cents INTEGER NOT NULL DEFAULT 0,
		total_withdrawn_cents INTEGER NOT NULL DEFAULT 0,
		reconcile_hold INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE vendor_ledger_entries (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		description TEXT NOT NULL,
		order_id TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`
	require.NoError(t, conn.Exec(ddl).Error)

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	ledgerRepo := ledger.NewRepo(conn)
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:           ledgerRepo,
		Logger:         logg,
		CommissionRate: decimal.RequireFromString("0.05"),
	})
	require.NoError(t, err)

	dispatcher := &fakeDispatcher{}
	txRepo := transactions.NewRepo(conn)
	orderRepo := orders.NewRepo(conn)

	params := ServiceParams{
		DB:           &gormTxRunner{conn: conn},
		Transactions: txRepo,
		Orders:       orderRepo,
		Ledger:       ledgerSvc,
		Dispatcher:   dispatcher,
		Logger:       logg,
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	return &fixture{
		conn:       conn,
		svc:        svc,
		params:     params,
		dispatcher: dispatcher,
		txRepo:     txRepo,
		orderRepo:  orderRepo,
		ledgerRepo: ledgerRepo,
	}
}

// serviceWithRunner builds a second service sharing the fixture's repos but
// running its transactions through the given runner.
func (f *fixture) serviceWithRunner(t *testing.T, runner TxRunner) *Service {
	t.Helper()
	params := f.params
	params.DB = runner
	svc, err := NewService(params)
	require.NoError(t, err)
	return svc
}

func (f *fixture) seedOrderAndTransaction(t *testing.T, digital bool, withVendor bool) (*models.Order, *models.PaymentTransaction) {
	t.Helper()
	order := &models.Order{
		ID:               uuid.New(),
		OrderNumber:      "SM-" + uuid.NewString()[:8],
		UserID:           uuid.New(),
		TotalAmountCents: 100000,
		Currency:         "XOF",
		Status:           enums.OrderStatusPending,
		PaymentStatus:    enums.PaymentStatusPending,
		Digital:          digital,
		CustomerEmail:    "client@example.sn",
	}
	if withVendor {
		vendorID := uuid.New()
		order.VendorID = &vendorID
	}
	if digital {
		order.DigitalItems = types.DigitalItems{{ProductName: "Ebook", DownloadURL: "https://cdn.example.sn/e.pdf"}}
	}
	require.NoError(t, f.conn.Create(order).Error)

	txn := &models.PaymentTransaction{
		ID:                   uuid.New(),
		OrderID:              order.ID,
		Gateway:              enums.GatewayA,
		GatewayTransactionID: "txn_" + uuid.NewString(),
		Status:               enums.TransactionStatusPending,
		AmountCents:          order.TotalAmountCents,
		Currency:             "XOF",
	}
	require.NoError(t, f.conn.Create(txn).Error)
	return order, txn
}

func outcomeFor(txn *models.PaymentTransaction, status enums.TransactionStatus) *gateways.PaymentOutcome {
	return &gateways.PaymentOutcome{
		Gateway:              txn.Gateway,
		GatewayTransactionID: txn.GatewayTransactionID,
		Status:               status,
		AmountCents:          txn.AmountCents,
		Currency:             "XOF",
		RawPayload:           json.RawMessage(`{"status":"report"}`),
	}
}

func TestApply_PaidHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, txn := f.seedOrderAndTransaction(t, false, true)

	result, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusPaid))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)

	updatedTxn, err := f.txRepo.FindByGatewayID(ctx, txn.Gateway, txn.GatewayTransactionID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusPaid, updatedTxn.Status)
	require.NotNil(t, updatedTxn.SettledAt)

	updatedOrder, err := f.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, updatedOrder.PaymentStatus)
	require.Equal(t, enums.OrderStatusConfirmed, updatedOrder.Status)

	vendorLedger, err := f.ledgerRepo.Get(ctx, *order.VendorID)
	require.NoError(t, err)
	require.EqualValues(t, 95000, vendorLedger.AvailableBalanceCents)

	require.Len(t, f.dispatcher.events, 1)
	require.Equal(t, fulfillment.EventPaymentSuccess, f.dispatcher.events[0].Type)
}

func TestApply_DigitalOrderDispatchesDelivery(t *testing.T) {
	f := newFixture(t)
	_, txn := f.seedOrderAndTransaction(t, true, true)

	result, err := f.svc.Apply(context.Background(), outcomeFor(txn, enums.TransactionStatusPaid))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)

	require.Len(t, f.dispatcher.events, 2)
	require.Equal(t, fulfillment.EventPaymentSuccess, f.dispatcher.events[0].Type)
	require.Equal(t, fulfillment.EventDigitalProductDelivery, f.dispatcher.events[1].Type)

	updatedOrder, err := f.orderRepo.FindByID(context.Background(), result.Order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.FulfillmentStatusDelivered, updatedOrder.FulfillmentStatus)
}

func TestApply_DuplicateReportIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, txn := f.seedOrderAndTransaction(t, false, true)

	first, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusPaid))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, first.Outcome)

	second, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusPaid))
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, second.Outcome)

	// Credited exactly once.
	vendorLedger, err := f.ledgerRepo.Get(ctx, *order.VendorID)
	require.NoError(t, err)
	require.EqualValues(t, 95000, vendorLedger.AvailableBalanceCents)

	entries, err := f.ledgerRepo.ListEntries(ctx, *order.VendorID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, f.dispatcher.events, 1)
}

func TestApply_ConflictingTerminalIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, txn := f.seedOrderAndTransaction(t, false, true)

	_, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusPaid))
	require.NoError(t, err)

	result, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusFailed))
	require.NoError(t, err)
	require.Equal(t, OutcomeConflictIgnored, result.Outcome)

	// Terminal status is immutable.
	updatedTxn, err := f.txRepo.FindByGatewayID(ctx, txn.Gateway, txn.GatewayTransactionID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusPaid, updatedTxn.Status)

	updatedOrder, err := f.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, updatedOrder.PaymentStatus)
}

func TestApply_LostRaceToConflictingStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, txn := f.seedOrderAndTransaction(t, false, true)

	// A failed report from the sweeper lands after this caller's initial
	// read but before its conditional update.
	runner := &hookTxRunner{inner: &gormTxRunner{conn: f.conn}}
	runner.before = func() {
		res, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusFailed))
		require.NoError(t, err)
		require.Equal(t, OutcomeApplied, res.Outcome)
	}

	slow := f.serviceWithRunner(t, runner)
	result, err := slow.Apply(ctx, outcomeFor(txn, enums.TransactionStatusPaid))
	require.NoError(t, err)
	require.Equal(t, OutcomeConflictIgnored, result.Outcome)

	// The first terminal status stands.
	updatedTxn, err := f.txRepo.FindByGatewayID(ctx, txn.Gateway, txn.GatewayTransactionID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusFailed, updatedTxn.Status)

	updatedOrder, err := f.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusFailed, updatedOrder.PaymentStatus)

	// The losing paid report must not credit or dispatch anything.
	_, err = f.ledgerRepo.Get(ctx, *order.VendorID)
	require.True(t, errors.HasCode(err, errors.CodeNotFound))
	require.Empty(t, f.dispatcher.events)
}

func TestApply_LostRaceToSameStatusIsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, txn := f.seedOrderAndTransaction(t, false, true)

	// Webhook and sweeper report paid at the same time; one settles the row
	// between the other's read and its conditional update.
	runner := &hookTxRunner{inner: &gormTxRunner{conn: f.conn}}
	runner.before = func() {
		res, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusPaid))
		require.NoError(t, err)
		require.Equal(t, OutcomeApplied, res.Outcome)
	}

	slow := f.serviceWithRunner(t, runner)
	result, err := slow.Apply(ctx, outcomeFor(txn, enums.TransactionStatusPaid))
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, result.Outcome)

	updatedTxn, err := f.txRepo.FindByGatewayID(ctx, txn.Gateway, txn.GatewayTransactionID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusPaid, updatedTxn.Status)

	// Credited and dispatched exactly once across both callers.
	vendorLedger, err := f.ledgerRepo.Get(ctx, *order.VendorID)
	require.NoError(t, err)
	require.EqualValues(t, 95000, vendorLedger.AvailableBalanceCents)

	entries, err := f.ledgerRepo.ListEntries(ctx, *order.VendorID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, f.dispatcher.events, 1)
}

func TestApply_UnknownTransaction(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Apply(context.Background(), &gateways.PaymentOutcome{
		Gateway:              enums.GatewayA,
		GatewayTransactionID: "txn_unknown",
		Status:               enums.TransactionStatusPaid,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeNotFound, result.Outcome)
}

func TestApply_FailedPaymentCancelsOrderWithoutCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, txn := f.seedOrderAndTransaction(t, false, true)

	result, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusFailed))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)

	updatedOrder, err := f.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusFailed, updatedOrder.PaymentStatus)
	require.Equal(t, enums.OrderStatusCancelled, updatedOrder.Status)

	_, err = f.ledgerRepo.Get(ctx, *order.VendorID)
	require.True(t, errors.HasCode(err, errors.CodeNotFound))
	require.Empty(t, f.dispatcher.events)
}

func TestApply_PendingReportIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, txn := f.seedOrderAndTransaction(t, false, true)

	result, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusPending))
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, result.Outcome)

	updatedTxn, err := f.txRepo.FindByGatewayID(ctx, txn.Gateway, txn.GatewayTransactionID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusPending, updatedTxn.Status)
}

func TestApply_DeletedOrderStillSettlesTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, txn := f.seedOrderAndTransaction(t, false, true)
	require.NoError(t, f.conn.Exec(`DELETE FROM orders WHERE id = ?`, order.ID).Error)

	result, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusPaid))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)
	require.Nil(t, result.Order)

	updatedTxn, err := f.txRepo.FindByGatewayID(ctx, txn.Gateway, txn.GatewayTransactionID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusPaid, updatedTxn.Status)
	require.Empty(t, f.dispatcher.events)
}

func TestApply_PaidOrderWithoutVendorSkipsCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, txn := f.seedOrderAndTransaction(t, false, false)

	result, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusPaid))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)

	// Customer confirmation still goes out.
	require.Len(t, f.dispatcher.events, 1)
}

func TestApply_LedgerInconsistencyRollsBackAndHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, txn := f.seedOrderAndTransaction(t, false, true)

	// Corrupt the vendor ledger so the conservation check fails.
	require.NoError(t, f.conn.Exec(`
		INSERT INTO vendor_ledgers (vendor_id, available_balance_cents, pending_balance_cents, total_earned_cents, total_withdrawn_cents, reconcile_hold)
		VALUES (?, 777, 0, 0, 0, 0)
	`, order.VendorID).Error)

	_, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusPaid))
	require.True(t, errors.HasCode(err, errors.CodeLedgerInconsistency))

	// The whole transition rolled back; the transaction stays pending so a
	// later retry can settle it once the hold is cleared.
	updatedTxn, err := f.txRepo.FindByGatewayID(ctx, txn.Gateway, txn.GatewayTransactionID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusPending, updatedTxn.Status)

	updatedOrder, err := f.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, updatedOrder.PaymentStatus)

	// The hold survived the rollback.
	vendorLedger, err := f.ledgerRepo.Get(ctx, *order.VendorID)
	require.NoError(t, err)
	require.True(t, vendorLedger.ReconcileHold)
	require.Empty(t, f.dispatcher.events)
}

func TestApply_DispatchFailureDoesNotFailReconciliation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, txn := f.seedOrderAndTransaction(t, false, true)
	f.dispatcher.err = errors.New(errors.CodeDependency, "broker down")

	result, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusPaid))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)

	updatedOrder, err := f.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, updatedOrder.PaymentStatus)
}

func TestApply_OrderAlreadySettledOutOfBand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, txn := f.seedOrderAndTransaction(t, false, true)

	// A refund flow settled the order while the transaction stayed pending.
	require.NoError(t, f.conn.Exec(`UPDATE orders SET payment_status = 'refunded' WHERE id = ?`, order.ID).Error)

	result, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusPaid))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)

	// Transaction settles, order untouched, no credit, no dispatch.
	updatedOrder, err := f.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusRefunded, updatedOrder.PaymentStatus)

	_, err = f.ledgerRepo.Get(ctx, *order.VendorID)
	require.True(t, errors.HasCode(err, errors.CodeNotFound))
	require.Empty(t, f.dispatcher.events)
}

func TestApply_SettledTimestampOnlyWhenPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, txn := f.seedOrderAndTransaction(t, false, true)

	_, err := f.svc.Apply(ctx, outcomeFor(txn, enums.TransactionStatusCancelled))
	require.NoError(t, err)

	updatedTxn, err := f.txRepo.FindByGatewayID(ctx, txn.Gateway, txn.GatewayTransactionID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusCancelled, updatedTxn.Status)
	require.Nil(t, updatedTxn.SettledAt)
}
