// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/runboard/internal/model"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層やミドルウェアから利用する。
type MetricsCollector interface {
	RecordRequestsCreated(count int)
	RecordStatusTransition(to model.RequestStatus)
	RecordRequestsReaped(count int64)
	RecordBoardSubscribers(count int)
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requestsCreated  prometheus.Counter
	statusTransition *prometheus.CounterVec
	requestsReaped   prometheus.Counter
	boardSubscribers prometheus.Gauge
	httpStatus       *prometheus.CounterVec
	httpLatency      prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requestsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runboard_requests_created_total",
			Help: "起票されたリクエストの合計数",
		}),
		statusTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runboard_status_transitions_total",
			Help: "遷移先状態別の状態遷移数",
		}, []string{"to_status"}),
		requestsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runboard_requests_reaped_total",
			Help: "保持期間超過で削除されたリクエストの合計数",
		}),
		boardSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "runboard_board_subscribers",
			Help: "ライブビューの現在の購読者数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runboard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "runboard_http_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.requestsCreated,
		c.statusTransition,
		c.requestsReaped,
		c.boardSubscribers,
		c.httpStatus,
		c.httpLatency,
	)

	return c
}

// RecordRequestsCreated は起票されたリクエスト数を記録する。
func (c *Collector) RecordRequestsCreated(count int) {
	c.requestsCreated.Add(float64(count))
}

// RecordStatusTransition は状態遷移を遷移先別に記録する。
func (c *Collector) RecordStatusTransition(to model.RequestStatus) {
	c.statusTransition.WithLabelValues(string(to)).Inc()
}

// RecordRequestsReaped は削除されたリクエスト数を記録する。
func (c *Collector) RecordRequestsReaped(count int64) {
	c.requestsReaped.Add(float64(count))
}

// RecordBoardSubscribers は現在の購読者数を記録する。
func (c *Collector) RecordBoardSubscribers(count int) {
	c.boardSubscribers.Set(float64(count))
}

// RecordHTTPRequest はHTTPレスポンスのステータスとレイテンシを記録する。
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpStatus.WithLabelValues(strconv.Itoa(status)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
