package silo

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports the bring-up outcome of every silo opened with it.
type Metrics struct {
	SegmentCount  *prometheus.GaugeVec
	SegmentLength *prometheus.GaugeVec
	FreeReserve   *prometheus.GaugeVec
	MediaSize     *prometheus.GaugeVec
	Reinitialized *prometheus.CounterVec
	AddressDrift  *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	segmentCount := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "silo_segment_count",
		Help: "Derived segment count bounds and target",
	}, []string{"silo", "bound"})

	segmentLength := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "silo_segment_length_bytes",
		Help: "Derived segment length bounds and target",
	}, []string{"silo", "bound"})

	freeReserve := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "silo_free_reserve_bytes",
		Help: "Bytes withheld from allocation",
	}, []string{"silo"})

	mediaSize := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "silo_media_size_bytes",
		Help: "Size of the backing file",
	}, []string{"silo"})

	reinitialized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "silo_reinitialized_total",
		Help: "Silos overwritten with an empty silo because they failed validation",
	}, []string{"silo"})

	addressDrift := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "silo_address_drift_total",
		Help: "Silos mapped away from their recorded address",
	}, []string{"silo"})

	reg.MustRegister(segmentCount, segmentLength, freeReserve, mediaSize, reinitialized, addressDrift)

	return &Metrics{
		SegmentCount:  segmentCount,
		SegmentLength: segmentLength,
		FreeReserve:   freeReserve,
		MediaSize:     mediaSize,
		Reinitialized: reinitialized,
		AddressDrift:  addressDrift,
	}
}

func (m *Metrics) observe(s *Silo) {
	if m == nil {
		return
	}
	m.SegmentCount.WithLabelValues(s.Path, "min").Set(float64(s.MinNseg))
	m.SegmentCount.WithLabelValues(s.Path, "max").Set(float64(s.MaxNseg))
	m.SegmentCount.WithLabelValues(s.Path, "aim").Set(float64(s.AimNseg))
	m.SegmentLength.WithLabelValues(s.Path, "min").Set(float64(s.MinSegl))
	m.SegmentLength.WithLabelValues(s.Path, "max").Set(float64(s.MaxSegl))
	m.SegmentLength.WithLabelValues(s.Path, "aim").Set(float64(s.AimSegl))
	m.FreeReserve.WithLabelValues(s.Path).Set(float64(s.FreeReserve))
	m.MediaSize.WithLabelValues(s.Path).Set(float64(s.MediaSize))
}

func (m *Metrics) reinitialized(path string) {
	if m == nil {
		return
	}
	m.Reinitialized.WithLabelValues(path).Inc()
}

func (m *Metrics) addressDrift(path string) {
	if m == nil {
		return
	}
	m.AddressDrift.WithLabelValues(path).Inc()
}
