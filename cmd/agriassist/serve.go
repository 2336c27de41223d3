package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/agriassist/internal/api"
	"github.com/liliang-cn/agriassist/internal/catalog"
	"github.com/liliang-cn/agriassist/internal/config"
	"github.com/liliang-cn/agriassist/internal/llm"
	"github.com/liliang-cn/agriassist/internal/logger"
	"github.com/liliang-cn/agriassist/internal/metrics"
	"github.com/liliang-cn/agriassist/internal/repository"
	"github.com/liliang-cn/agriassist/internal/risk"
	"github.com/liliang-cn/agriassist/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Log.Mode != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	sessionRepo := repository.NewSessionRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	knowledgeRepo := repository.NewKnowledgeRepository(db)
	adminService := service.NewAdminService(sessionRepo, usageRepo, knowledgeRepo)

	seed, err := catalog.LoadKnowledge("")
	if err != nil {
		return err
	}
	if n, err := adminService.SeedKnowledge(ctx, seed); err != nil {
		log.Warn("Failed to seed knowledge base", zap.Error(err))
	} else if n > 0 {
		log.Info("Seeded knowledge base", zap.Int("entries", n))
	}

	// Static tables
	plans, err := catalog.LoadPlans(cfg.Catalog.PlansPath)
	if err != nil {
		return err
	}
	districts, err := catalog.LoadDistricts(cfg.Catalog.DistrictsPath)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Risk signal gateway
	var cache risk.Cache
	if cfg.Redis.Enabled {
		rc, err := risk.NewRedisCache(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn("Redis unavailable, running without risk cache", zap.Error(err))
		} else {
			defer rc.Close()
			cache = rc
		}
	}

	httpClient := &http.Client{}
	gateway := risk.NewGateway(
		risk.NewWeatherClient(cfg.Weather.BaseURL, cfg.Weather.Timeout, httpClient),
		risk.NewDisasterClient(cfg.Disaster.URL, cfg.Disaster.Limit, cfg.Disaster.Timeout, httpClient),
		risk.NewSoilTable(districts),
		risk.GatewayOptions{
			Cache:       cache,
			WeatherTTL:  cfg.Redis.WeatherTTL,
			DisasterTTL: cfg.Redis.DisasterTTL,
			Metrics:     m,
		},
		log,
	)
	recommender := service.NewRecommendationService(gateway, plans, m, log)

	// Chat tiers
	var remote service.RemoteGenerator
	if cfg.LLM.Remote.APIKey != "" {
		rm, err := llm.NewRemoteModel(ctx, llm.RemoteConfig{
			APIKey:      cfg.LLM.Remote.APIKey,
			Model:       cfg.LLM.Remote.Model,
			Temperature: cfg.LLM.Remote.Temperature,
			Timeout:     cfg.LLM.Remote.Timeout,
		})
		if err != nil {
			log.Warn("Remote model disabled", zap.Error(err))
		} else {
			remote = rm
		}
	} else {
		log.Info("No remote model API key, chat starts at the local tier")
	}

	var local service.LocalGenerator
	if cfg.LLM.Local.Enabled {
		lm, err := llm.NewLocalModel(ctx, llm.LocalConfig{
			BaseURL:      cfg.LLM.Local.BaseURL,
			APIKey:       cfg.LLM.Local.APIKey,
			Model:        cfg.LLM.Local.Model,
			Temperature:  cfg.LLM.Local.Temperature,
			ProbeTimeout: cfg.LLM.Local.ProbeTimeout,
			Timeout:      cfg.LLM.Local.Timeout,
		})
		if err != nil {
			log.Warn("Local model disabled", zap.Error(err))
		} else {
			local = lm
		}
	}

	resolver := service.NewResolver([]service.Tier{
		service.RemoteTier(remote),
		service.LocalTier(local),
		service.KnowledgeTier(knowledgeRepo),
	}, cfg.Chat.ContextWindow, m, log)

	tracker := service.NewTracker(sessionRepo, usageRepo, service.TrackerOptions{
		SampleLength: cfg.Chat.SampleLength,
		SampleLimit:  cfg.Chat.SampleLimit,
	}, m, log)

	chatService := service.NewChatService(sessionRepo, resolver, tracker, log)

	// Setup router
	services := api.Services{
		Chat:        chatService,
		Recommender: recommender,
		Assessor:    gateway,
		Sessions:    adminService,
		Admin:       adminService,
	}
	if m != nil {
		services.Metrics = m.Handler()
	}
	router := api.SetupRouter(services, api.RouterConfig{
		APIKey:       cfg.Admin.APIKey,
		AllowOrigins: cfg.Server.AllowOrigins,
		MetricsPath:  cfg.Metrics.Path,
	}, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting agriassist server",
			zap.String("address", cfg.Address()),
			zap.String("base_url", cfg.Server.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited")
	return nil
}
