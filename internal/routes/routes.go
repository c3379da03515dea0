package routes

import (
	"net/http"
	"time"

	"github.com/fitcheckhq/fitcheck/internal/app"
	"github.com/fitcheckhq/fitcheck/internal/handler"
	"github.com/fitcheckhq/fitcheck/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler()
	auth := handler.NewAuthHandler(app.AuthService, app.Sessions, app.Cfg)
	assets := handler.NewAssetHandler()
	generate := handler.NewGenerateHandler()
	stylist := handler.NewStylistHandler()
	quota := handler.NewQuotaHandler()

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Healthz)

	// OAuth (rate limited)
	authLimiter := middleware.RateLimitAuth()
	mux.HandleFunc("GET /auth/google", authLimiter(auth.GoogleAuth))
	mux.HandleFunc("GET /auth/google/callback", authLimiter(auth.GoogleCallback))
	mux.HandleFunc("POST /auth/logout", auth.Logout)

	// ============================================================================
	// APP ROUTES (require auth)
	// ============================================================================

	mux.HandleFunc("GET /app/assets/{category}", middleware.RequireAuth(assets.List))
	mux.HandleFunc("POST /app/assets/{category}/reload", middleware.RequireAuth(assets.Reload))
	mux.HandleFunc("POST /app/assets/{category}", middleware.RequireAuth(assets.Upload))
	mux.HandleFunc("DELETE /app/assets/{category}/{id}", middleware.RequireAuth(assets.Delete))

	mux.HandleFunc("GET /app/quota", middleware.RequireAuth(quota.Show))

	// Generation endpoints share one limiter: the quota tracker is the
	// real gate, this only blunts accidental client loops.
	genLimiter := middleware.RateLimit(middleware.NewRateLimiter(30, time.Minute))
	mux.HandleFunc("POST /app/tryon", genLimiter(middleware.RequireAuth(generate.TryOn)))
	mux.HandleFunc("POST /app/catalog", genLimiter(middleware.RequireAuth(generate.Catalog)))
	mux.HandleFunc("POST /app/stylist", genLimiter(middleware.RequireAuth(stylist.Recommend)))

	// Global middleware
	return middleware.Chain(mux,
		middleware.RequestLogging,
		middleware.Config(app.Cfg),
		middleware.AuthMiddleware(app.AuthService, app.Sessions),
	)
}
