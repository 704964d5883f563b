package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "culturebridge"

// Metrics holds the node's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	relayPublish  *prometheus.CounterVec
	relayQuery    *prometheus.HistogramVec
	blobUpload    *prometheus.CounterVec
	uploadedBytes prometheus.Counter
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		relayPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_publish_total",
			Help:      "Events sent to relays by outcome.",
		}, []string{"relay", "outcome"}),
		relayQuery: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_query_duration_seconds",
			Help:      "Latency of relay REQ round trips.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"relay", "status"}),
		blobUpload: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_upload_total",
			Help:      "Blob uploads by result.",
		}, []string{"result"}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes successfully stored on blob servers.",
		}),
	}

	var err error
	if m.relayPublish, err = register(reg, m.relayPublish); err != nil {
		return nil, err
	}
	if m.relayQuery, err = register(reg, m.relayQuery); err != nil {
		return nil, err
	}
	if m.blobUpload, err = register(reg, m.blobUpload); err != nil {
		return nil, err
	}
	if m.uploadedBytes, err = register(reg, m.uploadedBytes); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %v", err)
	}
	return c, nil
}

func (m *Metrics) RecordPublish(relay, outcome string) {
	if m == nil {
		return
	}
	m.relayPublish.WithLabelValues(relay, outcome).Inc()
}

func (m *Metrics) RecordQuery(relay string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.relayQuery.WithLabelValues(relay, status).Observe(duration.Seconds())
}

// RecordUpload counts an upload; result is one of uploaded, cached or failed.
func (m *Metrics) RecordUpload(result string, size int64) {
	if m == nil {
		return
	}
	m.blobUpload.WithLabelValues(result).Inc()
	if result == "uploaded" {
		m.uploadedBytes.Add(float64(size))
	}
}
