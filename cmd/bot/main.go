package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/guild-warden/internal/api/http"
	"github.com/spec-kit/guild-warden/internal/api/http/handlers"
	"github.com/spec-kit/guild-warden/internal/auth"
	"github.com/spec-kit/guild-warden/internal/bot"
	"github.com/spec-kit/guild-warden/internal/config"
	"github.com/spec-kit/guild-warden/internal/events"
	"github.com/spec-kit/guild-warden/internal/gateway"
	"github.com/spec-kit/guild-warden/internal/observability"
	"github.com/spec-kit/guild-warden/internal/persistence"
	"github.com/spec-kit/guild-warden/internal/repository"
	"github.com/spec-kit/guild-warden/internal/scheduler"
	"github.com/spec-kit/guild-warden/internal/service"
	"github.com/spec-kit/guild-warden/internal/worker"
	"github.com/spec-kit/guild-warden/pkg/clock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	configRepo := repository.NewConfigRepository(cfg.Warden.ConfigDir)
	backupRepo := repository.NewBackupRepository(cfg.Warden.BackupDir)
	var auditRepo repository.AuditRepository
	if pool := pg.PoolHandle(); pool != nil {
		auditRepo = repository.NewAuditRepository(pool)
	}
	var markerRepo *repository.MuteMarkerRepository
	if rdb != nil {
		markerRepo = repository.NewMuteMarkerRepository(rdb.Client)
	}

	clk := clock.Real()
	tasks := scheduler.NewTable(clk)
	gate := auth.NewGate()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	var session *discordgo.Session
	var adapter gateway.Adapter
	if cfg.Discord.Token == "" {
		logger.Warn("DISCORD_TOKEN not provided; using in-memory gateway")
		adapter = gateway.NewMemoryAdapter()
	} else {
		session, err = discordgo.New("Bot " + cfg.Discord.Token)
		if err != nil {
			logger.Fatal("failed to create discord session", zap.Error(err))
		}
		session.Identify.Intents = discordgo.IntentsGuilds |
			discordgo.IntentsGuildMembers |
			discordgo.IntentsGuildMessageReactions
		adapter = gateway.NewDiscordAdapter(session)
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		Gateway:    adapter,
		Gate:       gate,
		Dispatcher: dispatcher,
		Tasks:      tasks,
		Clock:      clk,
		Logger:     logger,
		Audit:      auditRepo,
		CloseGrace: cfg.Warden.CloseGrace(),
	})
	moderationService := service.NewModerationService(service.ModerationDependencies{
		Gateway:         adapter,
		Gate:            gate,
		Dispatcher:      dispatcher,
		Tasks:           tasks,
		Clock:           clk,
		Logger:          logger,
		Audit:           auditRepo,
		Markers:         markerRepo,
		RoleName:        cfg.Warden.MutedRoleName,
		RoleColor:       cfg.Warden.MutedRoleColor,
		DefaultDuration: cfg.Warden.DefaultMuteDuration,
	})
	notificationService := service.NewNotificationService(dispatcher, adapter, configRepo, logger)
	backupService := service.NewBackupService(adapter, gate, backupRepo, dispatcher, clk, logger)
	autoroleService := service.NewAutoroleService(adapter, configRepo, logger)
	captchaService := service.NewCaptchaService(adapter, configRepo, dispatcher, clk, logger)

	worker.StartNotificationWorker(notificationService)
	worker.RunMuteReconciliation(ctx, markerRepo, moderationService, logger)

	if session != nil {
		router := bot.NewRouter(bot.RouterDependencies{
			Session:    session,
			Adapter:    adapter,
			Configs:    configRepo,
			Tickets:    ticketService,
			Moderation: moderationService,
			Backups:    backupService,
			Autoroles:  autoroleService,
			Captcha:    captchaService,
			Gate:       gate,
			Metrics:    metrics,
			Logger:     logger,
		})
		router.Attach()
		if err := session.Open(); err != nil {
			logger.Fatal("failed to open gateway session", zap.Error(err))
		}
		defer session.Close()
		if err := router.RegisterCommands(cfg.Discord.GuildID); err != nil {
			logger.Fatal("failed to register commands", zap.Error(err))
		}
		logger.Info("bot connected")
	}

	tokens := auth.NewTokenManager(cfg.Ops.JWTSecret, cfg.Ops.TokenTTLMinutes)
	opsMiddleware := auth.NewOpsMiddleware(tokens)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, 0)

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb)
	opsHandler := handlers.NewOpsHandler(cfg.Ops, tokens, ticketService, moderationService, backupRepo, configRepo, auditRepo, metrics)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        healthHandler,
		Ops:           opsHandler,
		OpsMiddleware: opsMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
