package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	redisinfra "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"
)

const janitorInterval = time.Minute

// quizSource loads stored quizzes and accepts new content from the admin API.
type quizSource interface {
	memory.QuizLoader
	app.QuizStore
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var source quizSource = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		source = postgres.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, source, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(source, quizTTL)
	}

	var (
		store        app.SessionRepository
		redisStore   *redisinfra.SessionStore
		rankingsSink app.RankingsSink
		rankingsRead transport.RankingsReader
	)
	if redisClient != nil {
		redisStore = redisinfra.NewSessionStore(redisClient, redisTTL, logger)
		store = redisStore
		cache := redisinfra.NewRankingsCache(redisClient, redisTTL)
		rankingsSink, rankingsRead = cache, cache
	} else {
		store = memory.NewSessionStore()
	}

	var archive app.ResultArchive
	if pool != nil {
		archive = postgres.NewResultArchive(pool)
	}

	manager := app.NewManager(store, app.ManagerOptions{
		Scoring: app.ScoringPolicy{
			BasePoints:     cfg.Scoring.BasePoints,
			MinPoints:      cfg.Scoring.MinPoints,
			StreakBonus:    cfg.Scoring.StreakBonus,
			MaxStreakBonus: cfg.Scoring.MaxStreakBonus,
		},
		QuestionTimeLimit: config.TTLDuration(cfg.Quiz.QuestionTimeLimit, app.DefaultQuestionTimeLimit),
		AutoClose:         cfg.Quiz.AutoClose,
		Timer:             app.NewAfterFuncTimer(),
		Quizzes:           quizRepo,
		QuizStore:         source,
		Rankings:          rankingsSink,
		Archive:           archive,
		Logger:            logger,
	})

	router := transport.NewRouter(
		transport.NewWSHandler(manager, logger),
		transport.NewAdminHandler(manager, rankingsRead, logger),
		transport.RouterOptions{
			Verifier:    transport.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
			CORSOrigins: cfg.Server.CORSOrigins,
			Logger:      logger,
		},
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}
	retention := config.TTLDuration(cfg.Quiz.Retention, time.Hour)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quiz service", "addr", server.Addr, "redis", redisClient != nil, "postgres", pool != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		runJanitor(gctx, manager, redisStore, retention, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// runJanitor drops sessions past their retention and keeps Redis liveness markers fresh.
func runJanitor(ctx context.Context, manager *app.Manager, redisStore *redisinfra.SessionStore, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			manager.ReapEnded(retention)
			if redisStore != nil {
				if err := redisStore.Touch(ctx); err != nil {
					logger.Warn("refresh session markers failed", "err", err)
				}
			}
		}
	}
}

// sampleQuizzes seeds the in-process loader when no Postgres is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{ID: "q1", Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1},
				{ID: "q2", Text: "Which planet is known as the red planet?", Options: []string{"Venus", "Mars", "Jupiter"}, CorrectIndex: 1},
				{ID: "q3", Text: "How many minutes are in an hour?", Options: []string{"60", "100", "24"}, CorrectIndex: 0},
			},
		},
	}
}
