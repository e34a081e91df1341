package router

import (
	"time"

	"fiscalgate/internal/config"
	"fiscalgate/internal/handler"
	"fiscalgate/internal/infra"
	"fiscalgate/internal/middleware"
	"fiscalgate/internal/repository"
	"fiscalgate/internal/service"
	"fiscalgate/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, gatewayCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	tokenStore := infra.NewRedisTokenStore(rdb)
	gateways := infra.NewGatewayFactory(cfg, tokenStore)
	dispatcher := worker.NewDispatcher(rdb)

	// ── Repositories ─────────────────────────────────────────────────────────
	registerRepo := repository.NewRegisterRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	registerSvc := service.NewRegisterService(registerRepo)
	receiptSvc := service.NewReceiptService(receiptRepo, registerRepo, gateways, dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	registersH := handler.NewRegistersHandler(registerSvc)
	checksH := handler.NewChecksHandler(receiptSvc)
	callbackH := handler.NewCallbackHandler(receiptSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, gatewayCB))

	// Gateway callback — unauthenticated by contract, throttled instead
	r.POST("/v1/checks/callback", middleware.CallbackRateLimiter(), callbackH.Receive)

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Check registration — any authenticated client
		v1.POST("/registers/:id/checks", middleware.RequireScope("checks", "admin"), checksH.RegisterCheck)
		v1.POST("/registers/:id/checks/async", middleware.RequireScope("checks", "admin"), checksH.RegisterCheckAsync)
		v1.POST("/registers/:id/corrections", middleware.RequireScope("checks", "admin"), checksH.RegisterCorrection)
		v1.GET("/checks/:uuid", middleware.RequireScope("checks", "admin"), checksH.GetCheck)

		// Register management — admin scope only
		regs := v1.Group("/registers", middleware.RequireScope("admin"))
		{
			regs.POST("", registersH.Create)
			regs.GET("", registersH.List)
			regs.GET("/:id", registersH.Get)
			regs.PUT("/:id", registersH.Update)
			regs.DELETE("/:id", registersH.Delete)
		}
	}

	return r
}
