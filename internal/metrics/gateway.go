package metrics

import "github.com/prometheus/client_golang/prometheus"

// GatewayMetrics instruments the WebSocket fan-out gateway.
type GatewayMetrics struct {
	Clients         prometheus.Gauge
	Messages        *prometheus.CounterVec // labels: kind=book|indicator
	SlowClientDrops prometheus.Counter
	Latency         prometheus.Histogram // source timestamp to fan-out
}

// NewGatewayMetrics registers gateway metrics with the default registry.
func NewGatewayMetrics() *GatewayMetrics {
	return NewGatewayMetricsWith(prometheus.DefaultRegisterer)
}

// NewGatewayMetricsWith registers gateway metrics with reg.
func NewGatewayMetricsWith(reg prometheus.Registerer) *GatewayMetrics {
	m := &GatewayMetrics{
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mdp_gateway_clients",
			Help: "Connected WebSocket clients",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdp_gateway_messages_total",
			Help: "PubSub messages fanned out, by kind",
		}, []string{"kind"}),
		SlowClientDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mdp_gateway_slow_client_drops_total",
			Help: "Envelopes dropped because a client's send queue was full",
		}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mdp_gateway_latency_seconds",
			Help:    "Delay between the payload timestamp and fan-out",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
	reg.MustRegister(m.Clients, m.Messages, m.SlowClientDrops, m.Latency)
	return m
}
