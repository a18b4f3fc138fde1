package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Причины отказа в оформлении заказа, регистрации и создании товара.
const (
	ReasonValidation           = "validation"
	ReasonCustomerNotFound     = "customer_not_found"
	ReasonProductNotFound      = "product_not_found"
	ReasonInsufficientQuantity = "insufficient_quantity"
	ReasonDuplicateEmail       = "duplicate_email"
	ReasonDuplicateProductName = "duplicate_product_name"
	ReasonStorage              = "storage"
	ReasonCanceled             = "canceled"
)

// StorefrontMetrics содержит метрики оформления заказов и регистрации клиентов.
// Все методы безопасно вызывать на nil.
type StorefrontMetrics struct {
	ordersPlaced      prometheus.Counter
	ordersRejected    *prometheus.CounterVec
	placementDuration prometheus.Histogram
	unitsSold         prometheus.Counter
	placementInFlight prometheus.Gauge

	customersRegistered   prometheus.Counter
	registrationsRejected *prometheus.CounterVec
	productsCreated       prometheus.Counter
	productsRejected      *prometheus.CounterVec
}

// NewStorefrontMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewStorefrontMetrics() *StorefrontMetrics {
	return NewStorefrontMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStorefrontMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewStorefrontMetricsWithRegisterer(registerer prometheus.Registerer) *StorefrontMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StorefrontMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Total number of orders placed successfully",
		}),
		ordersRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_rejected_total",
			Help: "Total number of order placements rejected, by reason",
		}, []string{"reason"}),
		placementDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_order_placement_duration_seconds",
			Help:    "Duration of order placement in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		unitsSold: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_order_units_total",
			Help: "Total number of product units decremented by placed orders",
		}),
		placementInFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_order_placements_in_flight",
			Help: "Number of order placements currently in progress",
		}),
		customersRegistered: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_customers_registered_total",
			Help: "Total number of customers registered",
		}),
		registrationsRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_registrations_rejected_total",
			Help: "Total number of customer registrations rejected, by reason",
		}, []string{"reason"}),
		productsCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_products_created_total",
			Help: "Total number of catalog products created",
		}),
		productsRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_products_rejected_total",
			Help: "Total number of catalog product creations rejected, by reason",
		}, []string{"reason"}),
	}
}

// PlacementStarted отмечает начало оформления и возвращает функцию завершения,
// которая записывает длительность.
func (m *StorefrontMetrics) PlacementStarted() func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	m.placementInFlight.Inc()
	return func() {
		m.placementInFlight.Dec()
		m.placementDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordOrderPlaced учитывает успешный заказ и списанные единицы товара.
func (m *StorefrontMetrics) RecordOrderPlaced(units int64) {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
	m.unitsSold.Add(float64(units))
}

// RecordOrderRejected учитывает отказ в оформлении.
func (m *StorefrontMetrics) RecordOrderRejected(reason string) {
	if m == nil {
		return
	}
	m.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordCustomerRegistered учитывает нового клиента.
func (m *StorefrontMetrics) RecordCustomerRegistered() {
	if m == nil {
		return
	}
	m.customersRegistered.Inc()
}

// RecordRegistrationRejected учитывает отказ в регистрации.
func (m *StorefrontMetrics) RecordRegistrationRejected(reason string) {
	if m == nil {
		return
	}
	m.registrationsRejected.WithLabelValues(reason).Inc()
}

// RecordProductCreated учитывает новый товар каталога.
func (m *StorefrontMetrics) RecordProductCreated() {
	if m == nil {
		return
	}
	m.productsCreated.Inc()
}

// RecordProductRejected учитывает отказ в создании товара.
func (m *StorefrontMetrics) RecordProductRejected(reason string) {
	if m == nil {
		return
	}
	m.productsRejected.WithLabelValues(reason).Inc()
}
