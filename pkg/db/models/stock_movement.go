package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
)

// StockMovement is an append-only record of a ledger operation on a harvest.
type StockMovement struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	HarvestID     uuid.UUID               `gorm:"column:harvest_id;type:uuid;not null;index" json:"harvest_id"`
	TransactionID *uuid.UUID              `gorm:"column:transaction_id;type:uuid;index" json:"transaction_id,omitempty"`
	Type          enums.StockMovementType `gorm:"column:type;type:varchar(20);not null" json:"type"`
	Quantity      decimal.Decimal         `gorm:"column:quantity;type:numeric(10,2);not null" json:"quantity"`
	BalanceAfter  decimal.Decimal         `gorm:"column:balance_after;type:numeric(10,2);not null" json:"balance_after"`
	StatusAfter   enums.HarvestStatus     `gorm:"column:status_after;type:varchar(20);not null" json:"status_after"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
