package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
)

// HarvestEvent describes a listing after it was created, edited or deleted.
type HarvestEvent struct {
	HarvestID         uuid.UUID           `json:"harvest_id"`
	SellerID          uuid.UUID           `json:"seller_id"`
	Title             string              `json:"title"`
	Category          string              `json:"category"`
	Price             decimal.Decimal     `json:"price"`
	QuantityAvailable decimal.Decimal     `json:"quantity_available"`
	Status            enums.HarvestStatus `json:"status"`
	Restocked         bool                `json:"restocked,omitempty"`
	RemovedOrders     int64               `json:"removed_orders,omitempty"`
}

// TransactionEvent is emitted when a purchase is placed or decided.
type TransactionEvent struct {
	TransactionID uuid.UUID                  `json:"transaction_id"`
	HarvestID     uuid.UUID                  `json:"harvest_id"`
	BuyerID       uuid.UUID                  `json:"buyer_id"`
	SellerID      uuid.UUID                  `json:"seller_id"`
	Quantity      decimal.Decimal            `json:"quantity"`
	TotalPrice    decimal.Decimal            `json:"total_price"`
	Status        enums.TransactionStatus    `json:"status"`
	Decision      *enums.TransactionDecision `json:"decision,omitempty"`
	StockAfter    decimal.Decimal            `json:"stock_after"`
}

// ReviewEvent is emitted when a buyer rates a seller.
type ReviewEvent struct {
	ReviewID      uuid.UUID `json:"review_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	SellerID      uuid.UUID `json:"seller_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	Rating        int       `json:"rating"`
}
