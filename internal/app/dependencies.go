package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/customer"
	"github.com/vladislavdragonenkov/storefront/internal/service/ordering"
)

// Services: доменные сервисы поверх выбранных хранилищ.
type Services struct {
	Customers *customer.RegistrationService
	Catalog   *catalog.Service
	Ordering  *ordering.PlacementService
}

// newServices связывает сервисы с хранилищами, общей транзакцией и outbox.
func newServices(deps *runtimeDependencies, m *metrics.StorefrontMetrics, logger *log.Entry) Services {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	return Services{
		Customers: customer.NewRegistrationService(deps.customers,
			customer.WithTransactor(deps.tx),
			customer.WithOutbox(deps.outboxRepo),
			customer.WithMetrics(m),
			customer.WithLogger(logger.WithField("layer", "customer")),
		),
		Catalog: catalog.NewService(deps.products, m, logger.WithField("layer", "catalog")),
		Ordering: ordering.NewPlacementService(deps.customers, deps.products, deps.orders,
			ordering.WithTransactor(deps.tx),
			ordering.WithOutbox(deps.outboxRepo),
			ordering.WithMetrics(m),
			ordering.WithLogger(logger.WithField("layer", "ordering")),
		),
	}
}
