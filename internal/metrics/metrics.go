package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bot's Prometheus collectors. It satisfies the trade
// engine's Recorder.
type Metrics struct {
	quotesCreated  *prometheus.CounterVec
	quotesResolved *prometheus.CounterVec
	quoteLifetime  *prometheus.HistogramVec
	rewardsGranted *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		quotesCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinbot_quotes_created_total",
				Help: "Total number of trade quotes issued",
			},
			[]string{"direction"},
		),
		quotesResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinbot_quotes_resolved_total",
				Help: "Total number of trade quotes resolved, by outcome",
			},
			[]string{"direction", "outcome"},
		),
		quoteLifetime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinbot_quote_lifetime_seconds",
				Help:    "Time from quote creation to resolution",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"outcome"},
		),
		rewardsGranted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinbot_rewards_total",
				Help: "Passive reward attempts, by result",
			},
			[]string{"result"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinbot_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinbot_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) QuoteCreated(direction string) {
	m.quotesCreated.WithLabelValues(direction).Inc()
}

func (m *Metrics) QuoteResolved(direction, outcome string, elapsed time.Duration) {
	m.quotesResolved.WithLabelValues(direction, outcome).Inc()
	m.quoteLifetime.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) RewardGranted(granted bool) {
	result := "granted"
	if !granted {
		result = "cooldown"
	}
	m.rewardsGranted.WithLabelValues(result).Inc()
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		m.httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}
