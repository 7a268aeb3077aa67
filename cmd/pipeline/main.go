package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/sharpline/cardline/internal/agent"
	"github.com/sharpline/cardline/internal/cache"
	"github.com/sharpline/cardline/internal/fetch"
	"github.com/sharpline/cardline/internal/infra"
	"github.com/sharpline/cardline/internal/llm"
	"github.com/sharpline/cardline/internal/pipeline"
	"github.com/sharpline/cardline/internal/provider"
	"github.com/sharpline/cardline/internal/report"
)

const (
	cacheDir   = "data/cache"
	reportsDir = "data/reports"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var (
		dateFlag     = flag.String("date", "", "target date YYYY-MM-DD (default: today in the reference zone)")
		testFlag     = flag.Int("test", 0, "test mode: cap the slate to N games")
		gameFlag     = flag.String("game-id", "", "run the pipeline for a single game id")
		refreshFlag  = flag.Bool("force-refresh", false, "bypass on-disk caches")
		debugFlag    = flag.Bool("debug", false, "write per-agent debug dumps")
		scheduleFlag = flag.Bool("schedule", false, "run as a daemon on the configured daily schedule")
		configFlag   = flag.String("config", "config.yaml", "path to the YAML run configuration")
	)
	flag.Parse()

	// A bad date exits before migrations or connections happen.
	if *dateFlag != "" && !validDate(*dateFlag) {
		fmt.Fprintf(os.Stderr, "invalid --date %q: want YYYY-MM-DD\n", *dateFlag)
		os.Exit(1)
	}

	env, err := infra.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if infra.ParseLogLevel(env.LogLevel) == "debug" || env.Debug || *debugFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	opts := pipeline.Options{
		TargetDate:   *dateFlag,
		TestLimit:    *testFlag,
		GameID:       *gameFlag,
		ForceRefresh: *refreshFlag,
		Debug:        *debugFlag,
	}
	if err := run(logger, env, *configFlag, opts, *scheduleFlag); err != nil {
		logger.Error("pipeline failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, env *infra.Env, configPath string, opts pipeline.Options, scheduled bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := env.Validate(cfg.Scraping.Kenpom.Enabled); err != nil {
		return err
	}

	if err := infra.RunMigrations(env.DSN(), logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, env)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	if !scheduled {
		if opts.TargetDate == "" {
			opts.TargetDate = today()
		}
		coordinator := buildCoordinator(pool, cfg, env, opts.TargetDate, logger)
		return coordinator.Run(ctx, opts)
	}
	return runScheduled(ctx, pool, cfg, env, logger, opts)
}

// runScheduled blocks on the configured daily trigger until interrupted.
func runScheduled(ctx context.Context, pool *pgxpool.Pool, cfg *infra.Config, env *infra.Env, logger *slog.Logger, base pipeline.Options) error {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("scheduler timezone: %w", err)
	}
	spec, err := cronSpec(cfg.Scheduler.RunTime)
	if err != nil {
		return err
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(spec, func() {
		opts := base
		opts.TargetDate = today()
		logger.Info("scheduled run starting", "date", opts.TargetDate)
		coordinator := buildCoordinator(pool, cfg, env, opts.TargetDate, logger)
		if err := coordinator.Run(ctx, opts); err != nil {
			logger.Error("scheduled run failed", "date", opts.TargetDate, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	logger.Info("scheduler started", "run_time", cfg.Scheduler.RunTime, "timezone", cfg.Scheduler.Timezone)
	c.Start()
	<-ctx.Done()
	logger.Info("shutdown signal received")

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("scheduler stop timed out")
	}
	return nil
}

// cronSpec converts an HH:MM wall-clock time to a cron expression.
func cronSpec(runTime string) (string, error) {
	parts := strings.SplitN(runTime, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("scheduler.run_time %q is not HH:MM", runTime)
	}
	return fmt.Sprintf("%s %s * * *", strings.TrimPrefix(parts[1], "0"), strings.TrimPrefix(parts[0], "0")), nil
}

// buildCoordinator wires providers, caches, agents and repositories for
// one target date.
func buildCoordinator(pool *pgxpool.Pool, cfg *infra.Config, env *infra.Env, targetDate string, logger *slog.Logger) *pipeline.Coordinator {
	client := fetch.NewClient(logger)

	linesCache := cache.NewStore(filepath.Join(cacheDir, "lines_cache.json"), logger)
	researchCache := cache.NewStore(filepath.Join(cacheDir, "researcher_cache.json"), logger)
	modelCache := cache.NewStore(filepath.Join(cacheDir, "modeler_cache.json"), logger)
	kenpomCache := cache.NewStore(filepath.Join(cacheDir, "kenpom_cache.json"), logger)

	schedule := provider.NewScheduleSource(client, logger)
	books := cfg.Scraping.LinesSources
	odds := provider.NewOddsSource(client, linesCache, env.OddsAPIKey, books, logger)

	var rankings *provider.KenpomSource
	if cfg.Scraping.Kenpom.Enabled {
		rankings = provider.NewKenpomSource(client, kenpomCache, env.KenpomEmail, env.KenpomPassword, logger)
	}
	web := provider.NewWebSearch(client, rankings, logger)

	var openai, gemini llm.Provider
	if env.OpenAIAPIKey != "" {
		openai = llm.NewOpenAIProvider(client, env.OpenAIAPIKey, logger)
	}
	if env.GeminiAPIKey != "" {
		gemini = llm.NewGeminiProvider(client, env.GeminiAPIKey, logger)
	}
	llmClient := llm.NewClient(openai, gemini, logger)

	toolset := agent.NewToolset(web, targetDate, logger)
	dispatcher := agent.NewDispatcher(toolset, logger)
	runtime := agent.NewRuntime(llmClient, dispatcher, logger)

	researcher := agent.NewResearcher(runtime, toolset, researchCache, cfg.ModelFor("researcher"), logger)
	modeler := agent.NewModeler(runtime, modelCache, cfg.ModelFor("modeler"), logger)
	picker := agent.NewPicker(runtime, cfg.ModelFor("picker"), logger)
	president := agent.NewPresident(runtime, cfg.ModelFor("president"), logger)
	auditor := agent.NewAuditor(runtime, cfg.ModelFor("auditor"), logger)

	reports := report.NewWriter(reportsDir, logger)

	return pipeline.NewCoordinator(pool, cfg, pipeline.NewRepos(),
		schedule, odds, llmClient,
		researcher, modeler, picker, president, auditor,
		reports, logger)
}

func today() string {
	return time.Now().In(provider.RefLocation()).Format(provider.DateFormat)
}

func validDate(s string) bool {
	_, err := time.ParseInLocation(provider.DateFormat, s, provider.RefLocation())
	return err == nil
}
