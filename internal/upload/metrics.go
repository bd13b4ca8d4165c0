package upload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tubely_video_uploads_total",
		Help: "Video upload pipeline runs by outcome and geometry",
	}, []string{"outcome", "geometry"})
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tubely_video_upload_stage_seconds",
		Help:    "Time spent in each video upload stage",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})
	uploadsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tubely_video_uploads_in_flight",
		Help: "Video uploads currently being processed",
	})
)
