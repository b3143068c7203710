package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/karimndoye/sunumarket-backend/pkg/enums"
)

// PaymentTransaction is one gateway-issued payment attempt. Rows are created
// at payment initialization, advanced only by the status reconciler, and
// never deleted; the raw gateway payload is retained for audit.
type PaymentTransaction struct {
	ID                   uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID              uuid.UUID               `gorm:"column:order_id;type:uuid;not null"`
	Gateway              enums.Gateway           `gorm:"column:gateway;type:gateway;not null;uniqueIndex:ux_payment_transactions_gateway_txid"`
	GatewayTransactionID string                  `gorm:"column:gateway_transaction_id;not null;uniqueIndex:ux_payment_transactions_gateway_txid"`
	Status               enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending'"`
	RawGatewayPayload    json.RawMessage         `gorm:"column:raw_gateway_payload;type:jsonb"`
	AmountCents          int64                   `gorm:"column:amount_cents;not null"`
	Currency             string                  `gorm:"column:currency;not null;default:'XOF'"`
	SettledAt            *time.Time              `gorm:"column:settled_at"`
	CreatedAt            time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
