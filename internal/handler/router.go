package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/careercompass/internal/metrics"
	"github.com/hitoshi/careercompass/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger
	Recorder          metrics.Recorder

	// 公開エンドポイント
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// プロフィール・お問い合わせ
	UserService UserServiceInterface

	// AI分析
	EntitlementService EntitlementServiceInterface
	AnalysisService    AnalysisServiceInterface

	// チケット
	TicketService  TicketServiceInterface
	TicketCheckout TicketCheckoutInterface

	// 紹介プログラム
	ReferralService ReferralServiceInterface

	// 課金
	BillingService BillingServiceInterface

	// 目標・タスク
	PlanningService PlanningServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → CORS → SecurityHeaders → Logging → Session → CSRF → RateLimit(General)
//
// 認証ルート（/auth/*）、ヘルスチェック、メトリクス、Stripe Webhookは
// セッションミドルウェアの外に配置する。Webhookは署名検証が認可手段となり、
// 外部サービスからの呼び出しのためCSRF検証の対象にもしない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	analysisHandler := NewAnalysisHandler(deps.EntitlementService, deps.AnalysisService)
	ticketHandler := NewTicketHandler(deps.TicketService, deps.TicketCheckout)
	referralHandler := NewReferralHandler(deps.ReferralService)
	billingHandler := NewBillingHandler(deps.BillingService)
	planningHandler := NewPlanningHandler(deps.PlanningService)

	// --- 認証不要のルート ---

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.HealthChecker.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Prometheusメトリクス
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// Stripe Webhook（署名検証が唯一の認可手段）
	r.Post("/api/stripe/webhook", billingHandler.Webhook)

	// CSRFトークン取得（フロントエンドが状態変更リクエスト前に取得する）
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Logging → Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		if deps.Logger != nil {
			r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Recorder))
		}
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// プロフィール
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.GetMe)
			r.Patch("/me", userHandler.UpdateMe)
		})

		// お問い合わせ
		r.Post("/api/contact", userHandler.SubmitContact)

		// AI分析
		r.Route("/api/analysis", func(r chi.Router) {
			r.Post("/eligibility", analysisHandler.CheckEligibility)
			r.Post("/save", analysisHandler.Save)
			r.Get("/", analysisHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", analysisHandler.Get)
				r.Delete("/", analysisHandler.Delete)
				r.Put("/favorite", analysisHandler.SetFavorite)
			})
		})

		// チケット
		r.Route("/api/tickets", func(r chi.Router) {
			r.Get("/", ticketHandler.GetBalance)
			r.Post("/use", ticketHandler.Use)
			r.Get("/products", ticketHandler.ListProducts)

			// チェックアウトセッション作成は外部決済APIを呼ぶため専用レート制限を追加
			r.With(deps.RateLimiter.CheckoutMiddleware()).
				Post("/create-checkout-session", ticketHandler.CreateCheckoutSession)
		})

		// 紹介プログラム
		r.Route("/api/referrals", func(r chi.Router) {
			r.Post("/", referralHandler.CreateCode)
			r.Get("/", referralHandler.GetStats)
			r.Post("/validate", referralHandler.ValidateCode)
			r.Post("/apply", referralHandler.ApplyCode)
		})

		// プラン契約のチェックアウト
		r.With(deps.RateLimiter.CheckoutMiddleware()).
			Post("/api/stripe/create-checkout-session", billingHandler.CreateCheckoutSession)

		// 契約ライフサイクル
		r.Route("/api/subscription", func(r chi.Router) {
			r.Post("/cancel", billingHandler.Cancel)
			r.Post("/downgrade", billingHandler.Downgrade)
			r.Post("/pause", billingHandler.Pause)
		})

		// 目標管理
		r.Route("/api/goals", func(r chi.Router) {
			r.Post("/", planningHandler.CreateGoal)
			r.Get("/", planningHandler.ListGoals)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", planningHandler.UpdateGoal)
				r.Delete("/", planningHandler.DeleteGoal)
			})
		})

		// タスク管理
		r.Route("/api/tasks", func(r chi.Router) {
			r.Post("/", planningHandler.CreateTask)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", planningHandler.UpdateTask)
				r.Delete("/", planningHandler.DeleteTask)
			})
		})
	})

	return r
}
