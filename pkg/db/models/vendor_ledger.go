package models

import (
	"time"

	"github.com/google/uuid"
)

// VendorLedger is the per-vendor running balance. Invariant after every
// update: total_earned - total_withdrawn == available + pending.
// ReconcileHold freezes credits for the vendor after a conservation
// violation until an operator clears it.
type VendorLedger struct {
	VendorID              uuid.UUID `gorm:"column:vendor_id;type:uuid;primaryKey"`
	AvailableBalanceCents int64     `gorm:"column:available_balance_cents;not null;default:0"`
	PendingBalanceCents   int64     `gorm:"column:pending_balance_cents;not null;default:0"`
	TotalEarnedCents      int64     `gorm:"column:total_earned_cents;not null;default:0"`
	TotalWithdrawnCents   int64     `gorm:"column:total_withdrawn_cents;not null;default:0"`
	ReconcileHold         bool      `gorm:"column:reconcile_hold;not null;default:false"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
