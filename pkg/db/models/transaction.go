package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
)

// Transaction records a buyer's purchase of harvest stock. Quantity and
// TotalPrice are fixed at insert; only Status moves afterwards.
type Transaction struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	HarvestID       uuid.UUID               `gorm:"column:harvest_id;type:uuid;not null;index" json:"harvest_id"`
	BuyerID         uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null;index" json:"buyer_id"`
	SellerID        uuid.UUID               `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	Quantity        decimal.Decimal         `gorm:"column:quantity;type:numeric(10,2);not null" json:"quantity"`
	TotalPrice      decimal.Decimal         `gorm:"column:total_price;type:numeric(10,2);not null" json:"total_price"`
	Status          enums.TransactionStatus `gorm:"column:status;type:varchar(20);not null;default:'pending';index" json:"status"`
	TransactionDate time.Time               `gorm:"column:transaction_date;not null" json:"transaction_date"`
	Notes           *string                 `gorm:"column:notes;type:varchar(1000)" json:"notes,omitempty"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.TransactionDate.IsZero() {
		t.TransactionDate = time.Now().UTC()
	}
	return nil
}
