// Package http exposes the onboarding engine over gin.
package http

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fitcoach-core/server/internal/agent/orchestrator"
	"github.com/fitcoach-core/server/internal/completion"
	"github.com/fitcoach-core/server/internal/http/handlers"
	"github.com/fitcoach-core/server/internal/http/middleware"
	"github.com/fitcoach-core/server/internal/metrics"
	"github.com/fitcoach-core/server/internal/onboarding"
)

type RouterConfig struct {
	DB           *gorm.DB
	Store        onboarding.Store
	Orchestrator *orchestrator.Orchestrator
	Completion   *completion.Controller
	Metrics      *metrics.Metrics
	JWTSecret    string
	CORSOrigins  []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORSOrigins))

	health := handlers.NewHealthHandler(cfg.DB)
	r.GET("/healthz", health.HealthCheck)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	auth := middleware.NewAuthMiddleware(cfg.JWTSecret)
	onb := handlers.NewOnboardingHandler(cfg.Store, cfg.Orchestrator, cfg.Completion, cfg.Metrics)
	chat := handlers.NewChatHandler(cfg.Orchestrator)

	api := r.Group("/api/v1")
	api.Use(auth.RequireAuth())
	{
		api.POST("/onboarding/start", onb.Start)
		api.GET("/onboarding/progress", onb.Progress)
		api.GET("/onboarding/state", onb.State)
		api.POST("/onboarding/step", onb.Step)
		api.POST("/onboarding/chat", onb.Chat)
		api.GET("/onboarding/current-agent", onb.CurrentAgent)
		api.POST("/onboarding/complete", onb.Complete)

		api.POST("/chat", chat.Chat)
		api.POST("/chat/onboarding", chat.Onboarding)
		api.POST("/chat/stream", chat.Stream)
		api.POST("/chat/voice/warmup", chat.WarmUp)
		api.DELETE("/chat/voice/session", chat.EndVoiceSession)
	}
	return r
}
