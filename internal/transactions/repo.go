package transactions

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/karimndoye/sunumarket-backend/pkg/db"
	"github.com/karimndoye/sunumarket-backend/pkg/db/models"
	"github.com/karimndoye/sunumarket-backend/pkg/enums"
	"github.com/karimndoye/sunumarket-backend/pkg/errors"
)

// Repo provides access to payment transactions.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// WithTx returns a repo bound to the given transaction handle.
func (r *Repo) WithTx(tx *gorm.DB) *Repo {
	return &Repo{db: tx}
}

// FindByGatewayID looks a transaction up by its gateway-scoped identifier.
func (r *Repo) FindByGatewayID(ctx context.Context, gateway enums.Gateway, gatewayTransactionID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND gateway_transaction_id = ?", gateway, gatewayTransactionID).
		First(&txn).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "payment transaction not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "querying payment transaction")
	}
	return &txn, nil
}

// Create inserts a new pending transaction row. A second init for the same
// gateway transaction id is a conflict, not an internal error.
func (r *Repo) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		if db.IsUniqueViolation(err, "ux_payment_transactions_gateway_txid") {
			return errors.Wrap(errors.CodeConflict, err, "payment transaction already initialized")
		}
		return errors.Wrap(errors.CodeInternal, err, "creating payment transaction")
	}
	return nil
}

// ListPendingCreatedAfter returns pending transactions created after the
// cutoff, oldest first. Backs the poll sweeper.
func (r *Repo) ListPendingCreatedAfter(ctx context.Context, cutoff time.Time) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at > ?", enums.TransactionStatusPending, cutoff).
		Order("created_at ASC").
		Find(&txns).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing pending transactions")
	}
	return txns, nil
}

// CASUpdate advances a transaction from an expected status to a new one in a
// single conditional UPDATE. It returns the number of rows affected: zero
// means another writer advanced the row first and the caller lost the race.
func (r *Repo) CASUpdate(ctx context.Context, id uuid.UUID, expected, next enums.TransactionStatus, rawPayload []byte, settledAt *time.Time) (int64, error) {
	updates := map[string]any{
		"status":     next,
		"updated_at": time.Now().UTC(),
	}
	if len(rawPayload) > 0 {
		updates["raw_gateway_payload"] = rawPayload
	}
	if settledAt != nil {
		updates["settled_at"] = settledAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if result.Error != nil {
		return 0, errors.Wrap(errors.CodeInternal, result.Error, "updating payment transaction status")
	}
	return result.RowsAffected, nil
}
