package reconcile

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/karimndoye/sunumarket-backend/internal/fulfillment"
	"github.com/karimndoye/sunumarket-backend/internal/gateways"
	"github.com/karimndoye/sunumarket-backend/internal/ledger"
	"github.com/karimndoye/sunumarket-backend/internal/orders"
	"github.com/karimndoye/sunumarket-backend/internal/transactions"
	"github.com/karimndoye/sunumarket-backend/pkg/db/models"
	"github.com/karimndoye/sunumarket-backend/pkg/enums"
	"github.com/karimndoye/sunumarket-backend/pkg/errors"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
)

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// errLostRace aborts the transaction when the conditional update hit zero
// rows; the loser re-reads and classifies afterwards.
var errLostRace = stdErrors.New("reconcile: lost status race")

// Service applies gateway-reported payment outcomes to local state. The
// conditional UPDATE on payment_transactions is the sole idempotency and
// race guard: whichever caller flips pending to a terminal status first
// wins, every other caller observes zero rows affected.
type Service struct {
	db           TxRunner
	transactions *transactions.Repo
	orders       *orders.Repo
	ledger       *ledger.Service
	dispatcher   fulfillment.Dispatcher
	logger       *logger.Logger
}

type ServiceParams struct {
	DB           TxRunner
	Transactions *transactions.Repo
	Orders       *orders.Repo
	Ledger       *ledger.Service
	Dispatcher   fulfillment.Dispatcher
	Logger       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transactions repo is required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repo is required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service is required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		db:           params.DB,
		transactions: params.Transactions,
		orders:       params.Orders,
		ledger:       params.Ledger,
		dispatcher:   params.Dispatcher,
		logger:       params.Logger,
	}, nil
}

// Apply reconciles one gateway-reported outcome. It is safe to call any
// number of times with the same report and safe to call concurrently from
// webhooks and the sweeper.
func (s *Service) Apply(ctx context.Context, outcome *gateways.PaymentOutcome) (*Result, error) {
	ctx = s.logger.WithGateway(ctx, outcome.Gateway.String())
	ctx = s.logger.WithTransactionID(ctx, outcome.GatewayTransactionID)

	txn, err := s.transactions.FindByGatewayID(ctx, outcome.Gateway, outcome.GatewayTransactionID)
	if err != nil {
		if errors.HasCode(err, errors.CodeNotFound) {
			s.logger.Warn(ctx, "gateway reported unknown transaction")
			return &Result{Outcome: OutcomeNotFound}, nil
		}
		return nil, err
	}

	// A pending report carries no transition.
	if !outcome.Status.IsTerminal() {
		return &Result{Outcome: OutcomeDuplicate, Transaction: txn}, nil
	}

	if txn.Status.IsTerminal() {
		return s.classifySettled(ctx, txn, outcome.Status), nil
	}

	var (
		order    *models.Order
		advanced bool
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var settledAt *time.Time
		if outcome.Status == enums.TransactionStatusPaid {
			now := time.Now().UTC()
			settledAt = &now
		}

		affected, err := s.transactions.WithTx(tx).CASUpdate(ctx, txn.ID, enums.TransactionStatusPending, outcome.Status, outcome.RawPayload, settledAt)
		if err != nil {
			return err
		}
		if affected == 0 {
			return errLostRace
		}

		order, err = s.orders.WithTx(tx).FindByID(ctx, txn.OrderID)
		if err != nil {
			// The order may have been deleted after payment init; the
			// transaction status still advances.
			if errors.HasCode(err, errors.CodeNotFound) {
				s.logger.Warn(ctx, "order missing for settled transaction")
				order = nil
				return nil
			}
			return err
		}

		paymentStatus, orderStatus := targetStatuses(outcome.Status)
		var fulfillmentStatus *enums.FulfillmentStatus
		if outcome.Status == enums.TransactionStatusPaid && order.Digital {
			delivered := enums.FulfillmentStatusDelivered
			fulfillmentStatus = &delivered
		}
		rows, err := s.orders.WithTx(tx).AdvancePaymentIfPending(ctx, order.ID, paymentStatus, orderStatus, fulfillmentStatus)
		if err != nil {
			return err
		}
		if rows == 0 {
			s.logger.Warn(ctx, "order payment status already settled, leaving untouched")
			return nil
		}
		advanced = true

		if outcome.Status != enums.TransactionStatusPaid {
			return nil
		}
		if order.VendorID == nil {
			s.logger.Warn(ctx, "paid order has no vendor, skipping ledger credit")
			return nil
		}
		return s.ledger.CreditForOrder(ctx, tx, order)
	})
	if err != nil {
		if stdErrors.Is(err, errLostRace) {
			return s.reclassifyAfterLostRace(ctx, outcome)
		}
		s.logger.Error(s.logger.WithField(ctx, "error_dump", errors.Dump(err)), "reconcile transaction failed", err)
		if errors.HasCode(err, errors.CodeLedgerInconsistency) && order != nil && order.VendorID != nil {
			// The credit rolled back; the hold must survive on the base
			// connection so no later retry credits a corrupt ledger.
			if holdErr := s.ledger.MarkHold(ctx, *order.VendorID); holdErr != nil {
				s.logger.Error(ctx, "failed to persist reconcile hold", holdErr)
			}
		}
		return nil, err
	}

	s.logger.Info(s.logger.WithField(ctx, "status", outcome.Status.String()), "payment transaction reconciled")

	result := &Result{Outcome: OutcomeApplied, Transaction: txn, Order: order}
	if advanced && outcome.Status == enums.TransactionStatusPaid && order != nil {
		s.dispatchFulfillment(ctx, order)
	}
	return result, nil
}

func (s *Service) classifySettled(ctx context.Context, txn *models.PaymentTransaction, incoming enums.TransactionStatus) *Result {
	if txn.Status == incoming {
		return &Result{Outcome: OutcomeDuplicate, Transaction: txn}
	}
	meta := map[string]any{"current": txn.Status.String(), "incoming": incoming.String()}
	s.logger.Warn(s.logger.WithFields(ctx, meta), "conflicting terminal status report discarded")
	return &Result{Outcome: OutcomeConflictIgnored, Transaction: txn}
}

func (s *Service) reclassifyAfterLostRace(ctx context.Context, outcome *gateways.PaymentOutcome) (*Result, error) {
	txn, err := s.transactions.FindByGatewayID(ctx, outcome.Gateway, outcome.GatewayTransactionID)
	if err != nil {
		return nil, err
	}
	return s.classifySettled(ctx, txn, outcome.Status), nil
}

// dispatchFulfillment publishes downstream events after commit. Failures are
// logged, never propagated; the payment state is already durable.
func (s *Service) dispatchFulfillment(ctx context.Context, order *models.Order) {
	event := fulfillment.PaymentSuccessEvent(order.CustomerEmail, order.OrderNumber, order.TotalAmountCents, order.Currency)
	if err := s.dispatcher.Dispatch(ctx, event); err != nil {
		s.logger.Error(ctx, "payment success dispatch failed", err)
	}

	if !order.Digital {
		return
	}
	delivery := fulfillment.DigitalDeliveryEvent(order.CustomerEmail, order.OrderNumber, order.DigitalItems)
	if err := s.dispatcher.Dispatch(ctx, delivery); err != nil {
		s.logger.Error(ctx, "digital delivery dispatch failed", err)
	}
}

func targetStatuses(status enums.TransactionStatus) (enums.PaymentStatus, enums.OrderStatus) {
	switch status {
	case enums.TransactionStatusPaid:
		return enums.PaymentStatusPaid, enums.OrderStatusConfirmed
	case enums.TransactionStatusFailed:
		return enums.PaymentStatusFailed, enums.OrderStatusCancelled
	case enums.TransactionStatusCancelled:
		return enums.PaymentStatusCancelled, enums.OrderStatusCancelled
	default:
		return enums.PaymentStatusPending, enums.OrderStatusPending
	}
}
