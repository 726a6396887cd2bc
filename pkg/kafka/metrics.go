package kafka

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	producerMsgsTotal     *prometheus.CounterVec
	producerBytesTotal    *prometheus.CounterVec
	producerLatency       *prometheus.HistogramVec
	consumerHandled       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerQueueDepth    *prometheus.GaugeVec
)

// RegisterMetrics registers producer and consumer collectors on reg. Only
// the first call has an effect; without it metrics are not recorded.
func RegisterMetrics(reg prometheus.Registerer) {
	metricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		f := promauto.With(reg)
		producerMsgsTotal = f.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultrisk_kafka_producer_messages_total",
			Help: "Messages published to Kafka",
		}, []string{"topic", "result"})
		producerBytesTotal = f.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultrisk_kafka_producer_bytes_total",
			Help: "Payload bytes published",
		}, []string{"topic"})
		producerLatency = f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vaultrisk_kafka_producer_publish_seconds",
			Help:    "Publish latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
		consumerHandled = f.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultrisk_kafka_consumer_messages_total",
			Help: "Messages handled by the consumer",
		}, []string{"topic", "result"})
		consumerHandleLatency = f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "vaultrisk_kafka_consumer_handle_seconds",
			Help: "Handling time per message",
		}, []string{"topic"})
		consumerQueueDepth = f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vaultrisk_kafka_consumer_queue_depth",
			Help: "Messages waiting for a worker",
		}, []string{"topic"})
	})
}

func observePublish(topic string, bytes int64, count int, dur time.Duration, err error) {
	if producerMsgsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMsgsTotal.WithLabelValues(topic, result).Add(float64(count))
	producerBytesTotal.WithLabelValues(topic).Add(float64(bytes))
	producerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}

func observeHandle(topic string, dur time.Duration, err error) {
	if consumerHandled == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	consumerHandled.WithLabelValues(topic, result).Inc()
	consumerHandleLatency.WithLabelValues(topic).Observe(dur.Seconds())
}

func observeQueue(topic string, depth int) {
	if consumerQueueDepth == nil {
		return
	}
	consumerQueueDepth.WithLabelValues(topic).Set(float64(depth))
}
