package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is a buyer's rating of a seller, at most one per transaction.
type Review struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BuyerID       uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null" json:"buyer_id"`
	SellerID      uuid.UUID  `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	TransactionID *uuid.UUID `gorm:"column:transaction_id;type:uuid;uniqueIndex:ux_reviews_transaction" json:"transaction_id,omitempty"`
	Rating        int        `gorm:"column:rating;not null" json:"rating"`
	Comment       *string    `gorm:"column:comment;type:varchar(1000)" json:"comment,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
