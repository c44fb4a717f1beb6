// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 共有コーデック、Cookieストア、タイマー操作、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordCodecFailure(op string)
	RecordShareLinkCreated()
	RecordShareResolution(result string)
	RecordStoreFailure(op string)
	RecordTimerCreated()
	RecordTimerImported()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	codecFail        *prometheus.CounterVec
	shareLinks       prometheus.Counter
	shareResolutions *prometheus.CounterVec
	storeFail        *prometheus.CounterVec
	timersCreated    prometheus.Counter
	timersImported   prometheus.Counter
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		codecFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "countdown_codec_fail_total",
			Help: "共有トークンのエンコード・デコード失敗の合計数",
		}, []string{"op"}),
		shareLinks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countdown_share_links_created_total",
			Help: "生成された共有リンクの合計数",
		}),
		shareResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "countdown_share_resolutions_total",
			Help: "共有URL解決の結果別の合計数",
		}, []string{"result"}),
		storeFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "countdown_store_fail_total",
			Help: "Cookieストアの保存・読み込み・削除失敗の合計数",
		}, []string{"op"}),
		timersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countdown_timers_created_total",
			Help: "作成されたタイマーの合計数",
		}),
		timersImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countdown_timers_imported_total",
			Help: "共有リンクから取り込まれたタイマーの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "countdown_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "countdown_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.codecFail,
		c.shareLinks,
		c.shareResolutions,
		c.storeFail,
		c.timersCreated,
		c.timersImported,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordCodecFailure はコーデック失敗を記録する。opはencodeまたはdecode。
func (c *Collector) RecordCodecFailure(op string) {
	c.codecFail.WithLabelValues(op).Inc()
}

// RecordShareLinkCreated は共有リンク生成を記録する。
func (c *Collector) RecordShareLinkCreated() {
	c.shareLinks.Inc()
}

// RecordShareResolution は共有URL解決の結果を記録する。
// resultはsuccessまたはエラー種別（invalid_url, invalid_data）。
func (c *Collector) RecordShareResolution(result string) {
	c.shareResolutions.WithLabelValues(result).Inc()
}

// RecordStoreFailure はCookieストアの失敗を記録する。
func (c *Collector) RecordStoreFailure(op string) {
	c.storeFail.WithLabelValues(op).Inc()
}

// RecordTimerCreated はタイマー作成を記録する。
func (c *Collector) RecordTimerCreated() {
	c.timersCreated.Inc()
}

// RecordTimerImported は共有タイマーの取り込みを記録する。
func (c *Collector) RecordTimerImported() {
	c.timersImported.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
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
