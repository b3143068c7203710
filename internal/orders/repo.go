package orders

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/karimndoye/sunumarket-backend/pkg/db/models"
	"github.com/karimndoye/sunumarket-backend/pkg/enums"
	"github.com/karimndoye/sunumarket-backend/pkg/errors"
)

// Repo provides access to orders.
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

// FindByID fetches an order by its primary key.
func (r *Repo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "order not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "querying order")
	}
	return &order, nil
}

// Create inserts a new order row.
func (r *Repo) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "creating order")
	}
	return nil
}

// AdvancePaymentIfPending moves an order out of payment_status='pending' in a
// single conditional UPDATE. Returns rows affected: zero means the order was
// already advanced, or deleted, and the caller must not touch it again.
// Digital orders settle their fulfillment in the same write when paid.
func (r *Repo) AdvancePaymentIfPending(ctx context.Context, id uuid.UUID, paymentStatus enums.PaymentStatus, orderStatus enums.OrderStatus, fulfillmentStatus *enums.FulfillmentStatus) (int64, error) {
	updates := map[string]any{
		"payment_status": paymentStatus,
		"status":         orderStatus,
		"updated_at":     time.Now().UTC(),
	}
	if fulfillmentStatus != nil {
		updates["fulfillment_status"] = *fulfillmentStatus
	}
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, enums.PaymentStatusPending).
		Updates(updates)
	if result.Error != nil {
		return 0, errors.Wrap(errors.CodeInternal, result.Error, "advancing order payment status")
	}
	return result.RowsAffected, nil
}
