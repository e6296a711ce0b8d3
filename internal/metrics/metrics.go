package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GeoCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "memeatlas_geo_cache_hits_total",
		Help: "Total in-process geolocation cache hits",
	})
	GeoCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "memeatlas_geo_cache_misses_total",
		Help: "Total in-process geolocation cache misses",
	})
	GeoRedisHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "memeatlas_geo_redis_hits_total",
		Help: "Total shared geolocation tier hits",
	})
	GeoLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "memeatlas_geo_lookups_total",
		Help: "Geolocation provider calls by outcome",
	}, []string{"provider", "outcome"})
	GeoLookupDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "memeatlas_geo_lookup_duration_ms",
		Help:    "Geolocation provider call duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"provider"})
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "memeatlas_upstream_requests_total",
		Help: "Chat completion and Imgflip requests by outcome",
	}, []string{"upstream", "outcome"})
	MemesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "memeatlas_memes_total",
		Help: "Meme submissions by result",
	}, []string{"result"})
	GalleryQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "memeatlas_gallery_queries_total",
		Help: "Gallery queries by the level that produced the result",
	}, []string{"level"})
)

func init() {
	prometheus.MustRegister(GeoCacheHitsTotal)
	prometheus.MustRegister(GeoCacheMissesTotal)
	prometheus.MustRegister(GeoRedisHitsTotal)
	prometheus.MustRegister(GeoLookupsTotal)
	prometheus.MustRegister(GeoLookupDurationMs)
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(MemesTotal)
	prometheus.MustRegister(GalleryQueriesTotal)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
