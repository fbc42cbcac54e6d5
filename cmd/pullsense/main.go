// Package main is the entry point for the PullSense application.
// PullSense is a GitHub webhook service that runs AI code review on
// incoming pull requests and pushes results to connected clients.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pullsense/pullsense/consts"
	"github.com/pullsense/pullsense/internal/analyzer"
	"github.com/pullsense/pullsense/internal/api/router"
	"github.com/pullsense/pullsense/internal/bus"
	"github.com/pullsense/pullsense/internal/cache"
	"github.com/pullsense/pullsense/internal/config"
	"github.com/pullsense/pullsense/internal/database"
	"github.com/pullsense/pullsense/internal/github"
	"github.com/pullsense/pullsense/internal/hub"
	"github.com/pullsense/pullsense/internal/queue"
	"github.com/pullsense/pullsense/internal/server"
	"github.com/pullsense/pullsense/internal/store"
	"github.com/pullsense/pullsense/pkg/logger"
)

// Build information - set via ldflags during build
// These variables are linked to consts package for global access
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// init synchronizes build info to consts package for global access
func init() {
	consts.Version = Version
	consts.BuildTime = BuildTime
	consts.GitCommit = GitCommit
}

// configPath holds the path to the configuration file
var configPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pullsense",
	Short: "PullSense - AI-Powered Pull Request Review Service",
	Long: `PullSense receives GitHub pull request webhooks, runs AI analysis on
them in background workers, and streams results to dashboards over
WebSocket connections.`,
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PullSense API server",
	Long: `Start the HTTP server to handle webhooks, API requests, and WebSocket
connections. Analysis jobs are dispatched to worker processes via the
Redis broker; run at least one 'pullsense worker' alongside.`,
	Run: runServe,
}

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start a PullSense analysis worker",
	Long: `Start a background worker that consumes analysis jobs from the Redis
broker, fetches pull request diffs, runs AI analysis, persists reviews,
and publishes completion events.`,
	Run: runWorker,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("PullSense %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: config/pullsense.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(versionCmd)

	serveCmd.Flags().String("host", "", "server host (overrides config)")
	serveCmd.Flags().Int("port", 0, "server port (overrides config)")
	serveCmd.Flags().Bool("debug", false, "enable debug mode")

	workerCmd.Flags().Int("concurrency", 0, "worker pool size (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// defaultConfigPath is used when --config is not given
const defaultConfigPath = "config/pullsense.yaml"

// loadConfig loads the configuration file, falling back to defaults when
// no file exists at the default path.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			// No config file is fine: every setting has a default.
			return config.Default(), nil
		}
		path = defaultConfigPath
	}
	return config.Load(path)
}

// runServe starts the PullSense API server
func runServe(cmd *cobra.Command, args []string) {
	consts.SetStartedAt(time.Now())

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override config with command line flags
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Server.Debug = true
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting PullSense server", zap.String("version", Version))

	if err := database.Init(); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	dataStore := store.NewStore(database.Get())

	eventBus, err := bus.NewRedis(cfg.Broker.RedisURL)
	if err != nil {
		logger.Fatal("Failed to connect to event bus", zap.Error(err))
	}
	defer eventBus.Close()

	queueClient, err := queue.NewClient(cfg.Broker.RedisURL, queue.ClientOptions{
		MaxRetry: cfg.Analysis.MaxRetries,
		Timeout:  time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to connect to broker", zap.Error(err))
	}
	defer queueClient.Close()

	diffCache := cache.New(cfg.Cache.RedisURL)
	githubSvc := github.New(cfg.GitHub.Token, diffCache)

	notifyHub := hub.New()

	srv := server.New(cfg, dataStore, notifyHub, eventBus)
	srv.SetupRoutes(router.Deps{
		Store:    dataStore,
		Enqueuer: queueClient,
		Hub:      notifyHub,
		GitHub:   githubSvc,
	})
	srv.SetRetention(store.NewRetentionService(dataStore, cfg.Retention.Days))

	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	logger.Info("PullSense server is running",
		zap.String("address", cfg.Server.Address()),
	)

	srv.WaitForShutdown()

	logger.Info("PullSense stopped")
}

// runWorker starts a PullSense analysis worker
func runWorker(cmd *cobra.Command, args []string) {
	consts.SetStartedAt(time.Now())

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if concurrency, _ := cmd.Flags().GetInt("concurrency"); concurrency > 0 {
		cfg.Analysis.Concurrency = concurrency
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting PullSense worker",
		zap.String("version", Version),
		zap.Int("concurrency", cfg.Analysis.Concurrency),
	)

	if err := database.Init(); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	dataStore := store.NewStore(database.Get())

	eventBus, err := bus.NewRedis(cfg.Broker.RedisURL)
	if err != nil {
		logger.Fatal("Failed to connect to event bus", zap.Error(err))
	}
	defer eventBus.Close()

	diffCache := cache.New(cfg.Cache.RedisURL)
	githubSvc := github.New(cfg.GitHub.Token, diffCache)

	codeAnalyzer := analyzer.New(analyzer.Config{
		APIKey:    cfg.Analysis.OpenAIAPIKey,
		Model:     cfg.Analysis.Model,
		MaxTokens: cfg.Analysis.MaxTokens,
	})

	processor := queue.NewProcessor(dataStore, githubSvc, codeAnalyzer, eventBus)

	worker, err := queue.NewWorker(cfg.Broker.RedisURL, cfg.Analysis.Concurrency, processor)
	if err != nil {
		logger.Fatal("Failed to create worker", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := worker.Run(ctx); err != nil {
		logger.Fatal("Worker failed", zap.Error(err))
	}

	logger.Info("PullSense worker stopped")
}
