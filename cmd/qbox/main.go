package main

// @title Qbox Gateway API
// @version 1.0
// @description HTTP-layer saga coordinator: intercepts matched requests and orchestrates a downstream transaction sequence with compensating rollback; passes through everything else.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/qboxio/qbox

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:3001
// @BasePath /

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qboxio/qbox/config"
	"github.com/qboxio/qbox/pkg/gateway"
	"github.com/qboxio/qbox/pkg/gateway/handlers"
	"github.com/qboxio/qbox/pkg/httpclient"
	"github.com/qboxio/qbox/pkg/logger"
	"github.com/qboxio/qbox/pkg/metrics"
	"github.com/qboxio/qbox/pkg/telemetry/tracing"
	"github.com/qboxio/qbox/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName    = flag.String("app-name", "", "Override app name")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath, buildOverrides())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting Qbox",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	sagaConfigs, err := config.LoadSagaConfigs(cfg.Server.ConfigPath)
	if err != nil {
		log.Error("Failed to load saga configuration", "path", cfg.Server.ConfigPath, "error", err)
		os.Exit(1)
	}
	log.Info("Loaded saga configuration", "path", cfg.Server.ConfigPath, "count", len(sagaConfigs))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	metricsManager := metrics.NewManager(metrics.Config{
		Enabled:                    cfg.Metrics.Enabled,
		Port:                       cfg.Metrics.Port,
		Path:                       cfg.Metrics.Path,
		SagaDurationBuckets:        metrics.DefaultConfig().SagaDurationBuckets,
		TransactionDurationBuckets: metrics.DefaultConfig().TransactionDurationBuckets,
		HTTPDurationBuckets:        metrics.DefaultConfig().HTTPDurationBuckets,
	})

	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	client := httpclient.New(httpclient.DefaultCircuitBreakerConfig())
	dispatchHandler := handlers.NewDispatchHandler(sagaConfigs, client, metricsManager, log)
	healthHandler := handlers.NewHealthHandler(func() int { return len(sagaConfigs) })

	gwHandlers := &gateway.Handlers{
		Dispatch: dispatchHandler,
		Health:   healthHandler,
		Metrics:  metricsManager,
	}

	httpServer := gateway.NewHTTPServer(cfg, log, gwHandlers)

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	log.Info("Qbox is running", "http_port", cfg.Server.Port, "metrics_port", cfg.Metrics.Port)
	log.Info("Press Ctrl+C to stop")

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", "error", err)
	}

	log.Info("Qbox stopped gracefully")
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("Qbox - HTTP Saga Coordinator\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("Qbox - HTTP-layer saga coordinator\n\n")
	fmt.Printf("Usage: qbox [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  qbox                                      # Run with default config\n")
	fmt.Printf("  qbox -config config.yaml                  # Use specific config file\n")
	fmt.Printf("  qbox -port 9090 -log-level debug          # Override specific options\n")
	fmt.Printf("  qbox -version                             # Print version info\n")
}
