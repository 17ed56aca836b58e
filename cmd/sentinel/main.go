package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sentinel-nlmod/internal/analytics"
	"sentinel-nlmod/internal/batch"
	"sentinel-nlmod/internal/bot"
	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/config"
	"sentinel-nlmod/internal/confirm"
	"sentinel-nlmod/internal/engine"
	"sentinel-nlmod/internal/executor"
	"sentinel-nlmod/internal/llm"
	"sentinel-nlmod/internal/metrics"
	"sentinel-nlmod/internal/modules/audit"
	"sentinel-nlmod/internal/parser"
	"sentinel-nlmod/internal/platform"
	"sentinel-nlmod/internal/reply"
	"sentinel-nlmod/internal/router"
	"sentinel-nlmod/internal/safety"
	"sentinel-nlmod/internal/storage"
	"sentinel-nlmod/internal/undo"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	lists := safety.NewLists(store)
	lists.Seed(safety.ListProtected, cfg.Safety.Protected)
	lists.Seed(safety.ListBlacklist, cfg.Safety.Blacklist)
	lists.Seed(safety.ListWhitelist, cfg.Safety.Whitelist)
	if err := lists.Load(ctx); err != nil {
		logger.Fatal("safety lists load failed", zap.Error(err))
	}

	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		logger.Fatal("discord session failed", zap.Error(err))
	}

	discord, err := platform.NewDiscord(session, store, logger, platform.DiscordOptions{
		CacheTTL:     cfg.Platform.MemberCacheTTL(),
		WarnColor:    cfg.Notifications.EmbedColors.Warning,
		ForgiveAfter: cfg.Platform.WarnForgiveAfter(),
		DMWarn:       cfg.Notifications.DMWarnEnabled,
	})
	if err != nil {
		logger.Fatal("platform init failed", zap.Error(err))
	}

	// NewOpenAI returns a nil pointer without an API key; keep the interface nil too.
	var model llm.Completer
	if openai := llm.NewOpenAI(llm.Options{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   int64(cfg.LLM.MaxTokens),
	}, logger); openai != nil {
		model = openai
	} else {
		logger.Info("no llm api key, parsing with patterns only")
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	auditLogger := audit.NewLogger(store, logger)
	if cfg.Redis.URL != "" {
		sink, err := audit.NewRedisSink(ctx, cfg.Redis.URL, cfg.Redis.Stream, int64(cfg.Redis.MaxLen))
		if err != nil {
			logger.Warn("redis audit stream disabled", zap.Error(err))
		} else {
			auditLogger.AddSink(sink)
			defer sink.Close()
		}
	}

	undoStore := undo.New(cfg.Undo.Window(), cfg.Undo.MaxEntries)
	colors := reply.Colors{
		Action:  cfg.Notifications.EmbedColors.Action,
		Warning: cfg.Notifications.EmbedColors.Warning,
		Error:   cfg.Notifications.EmbedColors.Error,
	}

	eng, err := engine.New(engine.Deps{
		Platform: discord,
		Chat:     model,
		Parser: parser.New(model, parser.Thresholds{
			Execute:   cfg.Parser.Threshold,
			Combine:   cfg.Parser.CombineFloor,
			AgreeBump: cfg.Parser.AgreementBump,
		}, cfg.LLM.Timeout(), logger),
		Validator:     safety.NewValidator(safetyConfig(cfg.Safety), lists, logger),
		Router:        router.New(cfg.Parser.Threshold, cfg.Session.StickyWindow(), cfg.Session.MemorySize),
		Executor:      executor.New(discord, auditLogger, undoStore, m, cfg.Platform.CallTimeout(), logger),
		Confirmations: confirm.New(cfg.Confirmation.Timeout()),
		Undo:          undoStore,
		Audit:         auditLogger,
		Store:         store,
		Analytics:     analytics.New(store),
		Replies:       reply.NewBuilder(colors),
		Metrics:       m,
		Logger:        logger,
	}, engine.Settings{
		DefaultLanguage: cfg.DefaultLanguage,
		Batch: batch.Config{
			MaxSize:       cfg.Batch.MaxSize,
			Delay:         cfg.Batch.Delay(),
			Jitter:        cfg.Batch.Jitter(),
			DrainInterval: cfg.Batch.DrainInterval(),
			HistorySize:   cfg.Batch.HistorySize,
			ErrorBudget:   cfg.Batch.ErrorBudget,
		},
		ConfirmSweep:  cfg.Confirmation.SweepInterval(),
		LookupTimeout: cfg.Platform.CallTimeout(),
		RetentionDays: cfg.RetentionDays,
		ChatEnabled:   cfg.LLM.ChatEnabled,
	})
	if err != nil {
		logger.Fatal("engine init failed", zap.Error(err))
	}

	botSvc, err := bot.New(cfg, logger, session, eng, auditLogger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("engine stopped", zap.Error(err))
		}
	}()

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started", zap.Bool("llm", model != nil), zap.String("language", cfg.DefaultLanguage))

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", m.Handler())
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(shutdownCtx)
	}
	botSvc.Close(shutdownCtx)
}

func safetyConfig(c config.SafetyConfig) safety.Config {
	out := safety.Config{
		ProtectListed:       c.ProtectListed,
		ProtectSelf:         c.ProtectSelf,
		ProtectBots:         c.ProtectBots,
		ProtectOwner:        c.ProtectOwner,
		ProtectHigherRole:   c.ProtectHigherRole,
		ProtectBotHierarchy: c.ProtectBotHierarchy,
		ConfirmTargets:      c.ConfirmTargets,
		DefaultLimit: safety.Limit{
			Cooldown:  c.Cooldown(""),
			PerMinute: c.MaxPerMinute,
			PerHour:   c.MaxPerHour,
		},
		Limits: make(map[command.Action]safety.Limit, len(command.Actions)),
	}
	for _, name := range c.ConfirmActions {
		if action, ok := command.ParseAction(name); ok && action.Valid() {
			out.ConfirmActions = append(out.ConfirmActions, action)
		}
	}
	for _, action := range command.Actions {
		out.Limits[action] = safety.Limit{
			Cooldown:  c.Cooldown(string(action)),
			PerMinute: c.MaxPerMinute,
			PerHour:   c.MaxPerHour,
		}
	}
	return out
}
