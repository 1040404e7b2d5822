package enums

// StockMovementType labels an entry in the harvest stock history.
type StockMovementType string

const (
	StockMovementReserve  StockMovementType = "reserve"
	StockMovementRelease  StockMovementType = "release"
	StockMovementFinalize StockMovementType = "finalize"
	StockMovementResync   StockMovementType = "resync"
	StockMovementAdjust   StockMovementType = "adjust"
)
