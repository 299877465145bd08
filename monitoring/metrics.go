package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	paymentsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_initiated_total",
			Help: "Total payments accepted for processing",
		},
		[]string{"method", "status"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Duration of gateway API calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"provider", "operation"},
	)

	verificationTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_ticks_total",
			Help: "Total verification poll attempts",
		},
		[]string{"method"},
	)

	verificationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_outcomes_total",
			Help: "Terminal verification loop outcomes",
		},
		[]string{"method", "outcome"},
	)

	activeVerifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_verifications_total",
			Help: "Verification loops currently polling",
		},
	)

	settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Total payments settled",
		},
		[]string{"method"},
	)

	refunds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_total",
			Help: "Total payments refunded",
		},
		[]string{"method"},
	)
)

// RecordInitiation counts an accepted payment request and the immediate
// gateway outcome.
func RecordInitiation(method, status string) {
	paymentsInitiated.WithLabelValues(method, status).Inc()
}

// ObserveGatewayCall tracks the latency of one gateway API call.
func ObserveGatewayCall(provider, operation string, duration time.Duration) {
	gatewayRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordVerificationTick counts one poll attempt.
func RecordVerificationTick(method string) {
	verificationTicks.WithLabelValues(method).Inc()
}

// RecordVerificationOutcome counts a terminal loop outcome
// (succeeded, failed, timed_out or stopped).
func RecordVerificationOutcome(method, outcome string) {
	verificationOutcomes.WithLabelValues(method, outcome).Inc()
}

// VerificationStarted and VerificationFinished track the active loop gauge.
func VerificationStarted()  { activeVerifications.Inc() }
func VerificationFinished() { activeVerifications.Dec() }

// RecordSettlement counts a settled payment.
func RecordSettlement(method string) {
	settlements.WithLabelValues(method).Inc()
}

// RecordRefund counts a refunded payment.
func RecordRefund(method string) {
	refunds.WithLabelValues(method).Inc()
}

// Monitor periodically samples redis-backed state into gauges.
type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		m.collectSessionMetrics(ctx)
	}
}

var paymentSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "payment_sessions_total",
		Help: "Cached payment sessions awaiting verification",
	},
)

func (m *Monitor) collectSessionMetrics(ctx context.Context) {
	keys, _ := m.redis.Keys(ctx, "payment:*").Result()
	paymentSessions.Set(float64(len(keys)))
}
