// Package metrics holds the Prometheus collectors exported on the status API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Exchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domonode_exchanges_total",
			Help: "Inbound command exchanges by response status (io_error when the reply could not be written)",
		},
		[]string{"status"},
	)

	ExchangeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "domonode_exchange_duration_seconds",
			Help:    "Time from accepted connection to response written",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)

	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domonode_upstream_requests_total",
			Help: "Outbound Domoticz requests by method and result",
		},
		[]string{"method", "result"},
	)

	SensorReadings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domonode_sensor_readings_total",
			Help: "Sensor read attempts by device and result",
		},
		[]string{"device", "result"},
	)

	SensorValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "domonode_sensor_value",
			Help: "Last value read from a sensor",
		},
		[]string{"device", "key"},
	)

	ButtonPresses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domonode_button_presses_total",
			Help: "Button presses forwarded to Domoticz",
		},
		[]string{"button"},
	)

	LinkUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "domonode_link_up",
			Help: "1 when the Wi-Fi station is associated with an address, 0 otherwise",
		},
	)

	Indicator = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "domonode_status_indicator",
			Help: "Status indicator output (1=on, 0=off)",
		},
	)
)

// Registry is a dedicated registry so only domonode collectors are exported.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(Exchanges)
	Registry.MustRegister(ExchangeDuration)
	Registry.MustRegister(UpstreamRequests)
	Registry.MustRegister(SensorReadings)
	Registry.MustRegister(SensorValue)
	Registry.MustRegister(ButtonPresses)
	Registry.MustRegister(LinkUp)
	Registry.MustRegister(Indicator)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// BoolValue converts b to a gauge value.
func BoolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
