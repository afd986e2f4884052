package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recycleapi_requests_total",
		Help: "Total number of /api/rules requests",
	})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recycleapi_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	InvalidZipTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recycleapi_invalid_zip_total",
		Help: "Total requests rejected by zip validation",
	})
	TierHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recycleapi_tier_hits_total",
		Help: "Rule resolutions by matched tier",
	}, []string{"tier"})
	GeneratedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recycleapi_generated_total",
		Help: "Total responses answered by generated link fallback",
	})
	LocationMissTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recycleapi_location_miss_total",
		Help: "Valid zips whose geographic enrichment was unavailable",
	})
	RedisHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recycleapi_redis_hits_total",
		Help: "Total redis cache hits",
	})
	RedisMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recycleapi_redis_misses_total",
		Help: "Total redis cache misses",
	})
	PersistFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recycleapi_persist_failures_total",
		Help: "Total rule document save failures",
	})
	AdminWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recycleapi_admin_writes_total",
		Help: "Total admin mutations by tier",
	}, []string{"tier"})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(InvalidZipTotal)
	prometheus.MustRegister(TierHitsTotal)
	prometheus.MustRegister(GeneratedTotal)
	prometheus.MustRegister(LocationMissTotal)
	prometheus.MustRegister(RedisHitsTotal)
	prometheus.MustRegister(RedisMissesTotal)
	prometheus.MustRegister(PersistFailTotal)
	prometheus.MustRegister(AdminWritesTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
