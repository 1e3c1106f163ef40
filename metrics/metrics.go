package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"method", "route"},
	)

	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_transitions_total",
			Help: "Host transitions by event and outcome",
		},
		[]string{"event", "result"},
	)

	Joins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_joins_total",
			Help: "Join attempts by outcome",
		},
		[]string{"result"},
	)

	Answers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_answers_total",
			Help: "Submitted answers by correctness",
		},
		[]string{"correct"},
	)

	QuizzesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quiz_sessions_created_total",
		Help: "Quiz sessions created",
	})

	Subscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quiz_subscriptions_active",
		Help: "Open document subscriptions",
	})

	CountdownsArmed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quiz_countdowns_armed",
		Help: "Question countdown timers currently armed",
	})
)

// Init registers every collector with the default registry. Call once.
func Init() {
	prometheus.MustRegister(
		RequestCounter,
		RequestDuration,
		Transitions,
		Joins,
		Answers,
		QuizzesCreated,
		Subscriptions,
		CountdownsArmed,
	)
}

// Result labels an outcome as "ok" or "error".
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Middleware records request count and latency per route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		RequestCounter.WithLabelValues(c.Method(), route, strconv.Itoa(c.Response().StatusCode())).Inc()
		RequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the Prometheus exposition format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
