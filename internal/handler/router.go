package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/runboard/internal/metrics"
	"github.com/hitoshi/runboard/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	PrincipalLoader   middleware.PrincipalLoader
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           middleware.StatusRecorder

	// 認証
	AuthService AuthServiceInterface

	// リクエスト
	RequestService RequestServiceInterface

	// ライブビュー
	BoardProjector BoardProjector
	BoardHub       BoardSubscriber
	BoardMetrics   BoardMetrics

	// ユーザー
	UserService UserServiceInterface

	// ヘルスチェック
	HealthChecker HealthChecker

	// Prometheusスクレイプ（nilなら/metricsを公開しない）
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → CORS → AuthMiddleware → RateLimit(General)
//
// 認証ルート（/auth/signup, /auth/login）とヘルスチェックは認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	requestHandler := NewRequestHandler(deps.RequestService)
	boardHandler := NewBoardHandler(deps.BoardProjector, deps.BoardHub, deps.BoardMetrics, logger)
	userHandler := NewUserHandler(deps.UserService)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	// --- 認証不要のルート ---

	r.Post("/auth/signup", authHandler.Signup)
	r.Post("/auth/login", authHandler.Login)
	r.Get("/health", healthHandler.Health)

	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, deps.PrincipalLoader))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/auth/me", authHandler.Me)

		// リクエスト管理
		r.Route("/api/requests", func(r chi.Router) {
			// POST /api/requests - 起票（起票専用レート制限を追加）
			r.With(deps.RateLimiter.CreateMiddleware()).Post("/", requestHandler.CreateRequests)
			r.Get("/", requestHandler.ListRequests)

			r.Patch("/{id}/status", requestHandler.UpdateRequestStatus)
		})

		// ライブビュー
		r.Route("/api/board", func(r chi.Router) {
			r.Get("/", boardHandler.GetBoard)
			r.Get("/watch", boardHandler.WatchBoard)
		})

		// ユーザー管理
		r.Put("/api/users/me/role", userHandler.SwitchRole)
	})

	return r
}
