package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
)

// Harvest is a seller's listing; QuantityAvailable and Status are owned by the
// stock ledger and are only written through it.
type Harvest struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SellerID          uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	Title             string              `gorm:"column:title;type:varchar(200);not null" json:"title"`
	Description       *string             `gorm:"column:description;type:varchar(2000)" json:"description,omitempty"`
	Category          string              `gorm:"column:category;type:varchar(50);not null;index" json:"category"`
	Price             decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	Unit              string              `gorm:"column:unit;type:varchar(20);not null;default:'kg'" json:"unit"`
	QuantityAvailable decimal.Decimal     `gorm:"column:quantity_available;type:numeric(10,2);not null" json:"quantity_available"`
	ImageURL          *string             `gorm:"column:image_url" json:"image_url,omitempty"`
	Status            enums.HarvestStatus `gorm:"column:status;type:varchar(20);not null;default:'available';index" json:"status"`
	HarvestDate       *time.Time          `gorm:"column:harvest_date" json:"harvest_date,omitempty"`
	Version           int64               `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (h *Harvest) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
