package marketplace

import (
	"fmt"

	"github.com/angelmondragon/farmexchange-backend/internal/analytics"
	"github.com/angelmondragon/farmexchange-backend/internal/harvests"
	"github.com/angelmondragon/farmexchange-backend/internal/ledger"
	"github.com/angelmondragon/farmexchange-backend/internal/reviews"
	"github.com/angelmondragon/farmexchange-backend/internal/transactions"
	"github.com/angelmondragon/farmexchange-backend/pkg/db"
	"github.com/angelmondragon/farmexchange-backend/pkg/logger"
	"github.com/angelmondragon/farmexchange-backend/pkg/metrics"
	"github.com/angelmondragon/farmexchange-backend/pkg/outbox"
)

// Assemble builds the facade and its collaborators over one database client.
func Assemble(client *db.Client, m *metrics.Marketplace, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("database client required")
	}
	conn := client.DB()
	events := outbox.NewService(outbox.NewRepository(conn), logg)

	stock, err := ledger.NewService(ledger.NewRepository(conn), client)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	workflow, err := transactions.NewService(transactions.NewRepository(conn), client, stock, events)
	if err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}
	ratings, err := reviews.NewService(reviews.NewRepository(conn), client, events)
	if err != nil {
		return nil, fmt.Errorf("reviews: %w", err)
	}
	reports, err := analytics.NewService(analytics.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}

	return NewService(Deps{
		Tx:           client,
		Harvests:     harvests.NewRepository(conn),
		Ledger:       stock,
		Transactions: workflow,
		Reviews:      ratings,
		Analytics:    reports,
		Outbox:       events,
		Metrics:      m,
		Logger:       logg,
	})
}
