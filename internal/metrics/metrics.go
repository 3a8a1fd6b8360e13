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
// 感情分析サービス層から利用する。
type MetricsCollector interface {
	RecordAnalysisSuccess(sentiment string)
	RecordAnalysisFailure(reason string)
	RecordParseFallback()
	RecordLLMStatus(statusCode int)
	RecordAnalysisLatency(duration time.Duration)
	RecordTokensConsumed(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	analysisSuccess *prometheus.CounterVec
	analysisFail    *prometheus.CounterVec
	parseFallback   prometheus.Counter
	llmStatus       *prometheus.CounterVec
	analysisLatency prometheus.Histogram
	tokensConsumed  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		analysisSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kanjo_analysis_success_total",
			Help: "感情分析成功の合計数（判定ラベル別）",
		}, []string{"sentiment"}),
		analysisFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kanjo_analysis_fail_total",
			Help: "感情分析失敗の合計数（失敗理由別）",
		}, []string{"reason"}),
		parseFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kanjo_parse_fallback_total",
			Help: "LLM応答のJSONパース失敗によるフォールバック判定の合計数",
		}),
		llmStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kanjo_llm_status_total",
			Help: "LLM APIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		analysisLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kanjo_analysis_latency_seconds",
			Help:    "感情分析のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tokensConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kanjo_tokens_consumed_total",
			Help: "消費されたLLMトークンの合計数",
		}),
	}

	reg.MustRegister(
		c.analysisSuccess,
		c.analysisFail,
		c.parseFallback,
		c.llmStatus,
		c.analysisLatency,
		c.tokensConsumed,
	)

	return c
}

// RecordAnalysisSuccess は感情分析成功を判定ラベルとともに記録する。
func (c *Collector) RecordAnalysisSuccess(sentiment string) {
	c.analysisSuccess.WithLabelValues(sentiment).Inc()
}

// RecordAnalysisFailure は感情分析失敗を理由とともに記録する。
func (c *Collector) RecordAnalysisFailure(reason string) {
	c.analysisFail.WithLabelValues(reason).Inc()
}

// RecordParseFallback はパース失敗によるフォールバック判定を記録する。
func (c *Collector) RecordParseFallback() {
	c.parseFallback.Inc()
}

// RecordLLMStatus はLLM APIのHTTPステータスコードを記録する。
func (c *Collector) RecordLLMStatus(statusCode int) {
	c.llmStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAnalysisLatency は感情分析のレイテンシを記録する。
func (c *Collector) RecordAnalysisLatency(duration time.Duration) {
	c.analysisLatency.Observe(duration.Seconds())
}

// RecordTokensConsumed は消費されたトークン数を記録する。
func (c *Collector) RecordTokensConsumed(count int) {
	c.tokensConsumed.Add(float64(count))
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
