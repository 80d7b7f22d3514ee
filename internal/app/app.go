// Package app wires configuration into a running server.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/fitcoach-core/server/internal/agent/agents"
	"github.com/fitcoach-core/server/internal/agent/conversations"
	"github.com/fitcoach-core/server/internal/agent/extractor"
	"github.com/fitcoach-core/server/internal/agent/llm"
	"github.com/fitcoach-core/server/internal/agent/orchestrator"
	"github.com/fitcoach-core/server/internal/agent/repo"
	"github.com/fitcoach-core/server/internal/completion"
	apihttp "github.com/fitcoach-core/server/internal/http"
	"github.com/fitcoach-core/server/internal/metrics"
	"github.com/fitcoach-core/server/internal/onboarding"
	"github.com/fitcoach-core/server/internal/profile"
	logx "github.com/fitcoach-core/server/pkg/logger"
)

type App struct {
	cfg    *Config
	db     *gorm.DB
	rdb    *goredis.Client
	server *apihttp.Server
}

// OpenDatabase connects and migrates every table the server owns.
func OpenDatabase(cfg *Config) (*gorm.DB, error) {
	db, err := cfg.Database.New()
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := onboarding.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate onboarding: %w", err)
	}
	if err := profile.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate profile: %w", err)
	}
	return db, nil
}

func New(ctx context.Context, cfg *Config) (*App, error) {
	if err := cfg.ValidateServe(); err != nil {
		return nil, err
	}
	if cfg.Env().IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	a := &App{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	db, err := OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	a.db = db

	var locker orchestrator.TurnLocker
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.rdb = rdb
		locker = repo.NewRedisTurnLocker(rdb)
		logx.Info().Msg("turn locks held in redis")
	} else {
		locker = repo.NewMemoryTurnLocker()
		logx.Warn().Msg("REDIS_URL not set, turn locks are process-local")
	}

	models, err := llm.NewChatModels(ctx, llm.ChatModelConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Agent:     &cfg.Agent,
		Extractor: &cfg.Extractor,
	})
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	mm := conversations.NewMessagesManager(cfg.Conversation)
	store := onboarding.NewGormStore(db, nil)

	ext, err := extractor.New(ctx, models.Extractor, models.ExtractorModelName, mm, m)
	if err != nil {
		return nil, err
	}
	orch, err := orchestrator.New(orchestrator.Config{
		Store: store,
		Agents: agents.NewFactory(agents.Deps{
			ChatModel:    models.Agent,
			ModelName:    models.AgentModelName,
			Store:        store,
			Messages:     mm,
			Metrics:      m,
			MaxToolCalls: cfg.Conversation.Tools.MaxCalls,
		}),
		Extractor:    ext,
		Locker:       locker,
		Metrics:      m,
		Conversation: cfg.Conversation,
	})
	if err != nil {
		return nil, err
	}

	engine := apihttp.NewRouter(apihttp.RouterConfig{
		DB:           db,
		Store:        store,
		Orchestrator: orch,
		Completion:   completion.New(db, store, profile.NewMaterializer(db), m),
		Metrics:      m,
		JWTSecret:    cfg.JWTSecret,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
	})
	a.server = apihttp.NewServer(cfg.HTTP.Addr, engine)
	ok = true
	return a, nil
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()
	return a.server.Run(ctx)
}

func (a *App) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			logx.Warn().Err(err).Msg("close redis")
		}
		a.rdb = nil
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		a.db = nil
	}
}
