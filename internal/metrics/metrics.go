// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// ドメインサービス層から利用する。
type Recorder interface {
	RecordAnalysisRun(analysisType string, viaTicket bool)
	RecordTicketConsumed(ticketType string)
	RecordCheckoutSession(mode string)
	RecordReferralCompleted()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	analysisRuns     *prometheus.CounterVec
	ticketsConsumed  *prometheus.CounterVec
	checkoutSessions *prometheus.CounterVec
	referrals        prometheus.Counter
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		analysisRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careercompass_analysis_runs_total",
			Help: "分析実行の合計数（種別・チケット経由別）",
		}, []string{"analysis_type", "via_ticket"}),
		ticketsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careercompass_tickets_consumed_total",
			Help: "消費されたチケットの合計数（種別別）",
		}, []string{"ticket_type"}),
		checkoutSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careercompass_checkout_sessions_total",
			Help: "作成されたチェックアウトセッションの合計数（モード別）",
		}, []string{"mode"}),
		referrals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careercompass_referrals_completed_total",
			Help: "成立した紹介の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careercompass_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.analysisRuns,
		c.ticketsConsumed,
		c.checkoutSessions,
		c.referrals,
		c.httpStatus,
	)

	return c
}

// RecordAnalysisRun は分析実行を記録する。
func (c *Collector) RecordAnalysisRun(analysisType string, viaTicket bool) {
	c.analysisRuns.WithLabelValues(analysisType, strconv.FormatBool(viaTicket)).Inc()
}

// RecordTicketConsumed はチケット消費を記録する。
func (c *Collector) RecordTicketConsumed(ticketType string) {
	c.ticketsConsumed.WithLabelValues(ticketType).Inc()
}

// RecordCheckoutSession はチェックアウトセッション作成を記録する。
func (c *Collector) RecordCheckoutSession(mode string) {
	c.checkoutSessions.WithLabelValues(mode).Inc()
}

// RecordReferralCompleted は紹介成立を記録する。
func (c *Collector) RecordReferralCompleted() {
	c.referrals.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop は何も記録しないRecorder実装。テストで使用する。
type Noop struct{}

// RecordAnalysisRun は何もしない。
func (Noop) RecordAnalysisRun(analysisType string, viaTicket bool) {}

// RecordTicketConsumed は何もしない。
func (Noop) RecordTicketConsumed(ticketType string) {}

// RecordCheckoutSession は何もしない。
func (Noop) RecordCheckoutSession(mode string) {}

// RecordReferralCompleted は何もしない。
func (Noop) RecordReferralCompleted() {}

// RecordHTTPStatus は何もしない。
func (Noop) RecordHTTPStatus(statusCode int) {}

// compile-time interface check
var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Noop{}
)
