package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/karimndoye/sunumarket-backend/pkg/enums"
	"github.com/karimndoye/sunumarket-backend/pkg/types"
)

// Order is the order aggregate the reconciler mutates. It is created by the
// checkout flow; once a payment transaction exists for it, only the status
// reconciler may advance its payment fields.
type Order struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       string                  `gorm:"column:order_number;not null;uniqueIndex"`
	UserID            uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	VendorID          *uuid.UUID              `gorm:"column:vendor_id;type:uuid"`
	TotalAmountCents  int64                   `gorm:"column:total_amount_cents;not null"`
	Currency          string                  `gorm:"column:currency;not null;default:'XOF'"`
	Status            enums.OrderStatus       `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus     enums.PaymentStatus     `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	FulfillmentStatus enums.FulfillmentStatus `gorm:"column:fulfillment_status;type:fulfillment_status;not null;default:'unfulfilled'"`
	Digital           bool                    `gorm:"column:digital;not null;default:false"`
	DigitalItems      types.DigitalItems      `gorm:"column:digital_items;type:jsonb;serializer:json"`
	CustomerEmail     string                  `gorm:"column:customer_email;not null"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
