package ledger

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/karimndoye/sunumarket-backend/pkg/db/models"
	"github.com/karimndoye/sunumarket-backend/pkg/errors"
)

// Repo provides access to vendor ledgers and their entry trail.
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

// Get fetches a vendor's ledger row.
func (r *Repo) Get(ctx context.Context, vendorID uuid.UUID) (*models.VendorLedger, error) {
	var ledger models.VendorLedger
	err := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID).First(&ledger).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "vendor ledger not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "querying vendor ledger")
	}
	return &ledger, nil
}

// CreditUpsert increments a vendor's available balance and lifetime earnings
// in one statement. The arithmetic runs inside the database so concurrent
// credits never read-modify-write a stale balance.
func (r *Repo) CreditUpsert(ctx context.Context, vendorID uuid.UUID, amountCents int64) error {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO vendor_ledgers (vendor_id, available_balance_cents, pending_balance_cents, total_earned_cents, total_withdrawn_cents, reconcile_hold, created_at, updated_at)
		VALUES (?, ?, 0, ?, 0, FALSE, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (vendor_id) DO UPDATE SET
			available_balance_cents = vendor_ledgers.available_balance_cents + excluded.available_balance_cents,
			total_earned_cents = vendor_ledgers.total_earned_cents + excluded.total_earned_cents,
			updated_at = CURRENT_TIMESTAMP
	`, vendorID, amountCents, amountCents).Error
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "crediting vendor ledger")
	}
	return nil
}

// AppendEntry records one immutable movement on the vendor's trail.
func (r *Repo) AppendEntry(ctx context.Context, entry *models.VendorLedgerEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "appending ledger entry")
	}
	return nil
}

// SetHold flips the reconcile hold flag, creating the ledger row if needed.
func (r *Repo) SetHold(ctx context.Context, vendorID uuid.UUID, hold bool) error {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO vendor_ledgers (vendor_id, available_balance_cents, pending_balance_cents, total_earned_cents, total_withdrawn_cents, reconcile_hold, created_at, updated_at)
		VALUES (?, 0, 0, 0, 0, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (vendor_id) DO UPDATE SET
			reconcile_hold = excluded.reconcile_hold,
			updated_at = CURRENT_TIMESTAMP
	`, vendorID, hold).Error
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "setting ledger hold")
	}
	return nil
}

// ListEntries returns a vendor's movements, newest first.
func (r *Repo) ListEntries(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.VendorLedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.VendorLedgerEntry
	err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing ledger entries")
	}
	return entries, nil
}
