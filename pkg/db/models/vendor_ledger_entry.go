package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/karimndoye/sunumarket-backend/pkg/enums"
)

// VendorLedgerEntry records an immutable money movement on a vendor ledger.
// Entries are append-only and reconstruct the balances.
type VendorLedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID    uuid.UUID             `gorm:"column:vendor_id;type:uuid;not null;index"`
	Type        enums.LedgerEntryType `gorm:"column:type;type:ledger_entry_type;not null"`
	AmountCents int64                 `gorm:"column:amount_cents;not null"`
	Description string                `gorm:"column:description;not null"`
	OrderID     *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
