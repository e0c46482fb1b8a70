package assistant

import "github.com/prometheus/client_golang/prometheus"

var (
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatd",
		Subsystem: "assistant",
		Name:      "queue_depth",
		Help:      "Pending tasks in the inference queue",
	})

	queueCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatd",
		Subsystem: "assistant",
		Name:      "queue_capacity",
		Help:      "Configured inference queue capacity",
	})

	tasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatd",
		Subsystem: "assistant",
		Name:      "tasks_total",
		Help:      "Inference tasks served, by outcome",
	}, []string{"outcome"})

	tokensGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chatd",
		Subsystem: "assistant",
		Name:      "tokens_generated_total",
		Help:      "Total text fragments streamed to callers",
	})

	generationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chatd",
		Subsystem: "assistant",
		Name:      "generation_duration_seconds",
		Help:      "Wall time of a single generation call",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(queueDepth, queueCapacity, tasksTotal, tokensGenerated, generationSeconds)
}
