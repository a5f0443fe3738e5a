package symbolicate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stacksym_symcache_hits_total",
		Help: "Symbol cache lookups served without a build.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stacksym_symcache_misses_total",
		Help: "Symbol cache lookups that found no stored entry.",
	})
	cacheBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stacksym_symcache_builds_total",
		Help: "Symbol caches built from debug info.",
	})
	cacheBuildFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stacksym_symcache_build_failures_total",
		Help: "Symbol cache builds that failed.",
	})
	cacheStoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stacksym_symcache_store_errors_total",
		Help: "Symbol cache store operations that failed.",
	})
	cacheWaiters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stacksym_symcache_waiters",
		Help: "Callers waiting on a symbol cache load.",
	})
	cacheBuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stacksym_symcache_build_seconds",
		Help:    "Time spent building symbol caches.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})
)
