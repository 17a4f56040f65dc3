package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meshfs/meshfs/internal/logger"
	"github.com/meshfs/meshfs/pkg/cluster"
	"github.com/meshfs/meshfs/pkg/config"
	"github.com/meshfs/meshfs/pkg/fs"
	"github.com/meshfs/meshfs/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
	initConfig := flag.Bool("init", false, "Write a starter config file at the default location and exit")
	flag.Parse()

	if *initConfig {
		path, err := config.InitConfig(false)
		if err != nil {
			log.Fatalf("Failed to initialize configuration: %v", err)
		}
		fmt.Printf("Wrote starter configuration to %s\n", path)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure logger
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		log.Fatalf("Failed to configure log output: %v", err)
	}

	fmt.Println("MeshFS - Distributed In-Memory File System")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	// Optional metrics endpoint
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		go serveMetrics(cfg.Metrics.ListenAddr)
		logger.Info("Metrics endpoint listening on %s", cfg.Metrics.ListenAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build the cache grid
	engine, err := config.BuildCacheEngine(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build cache engine: %v", err)
	}
	logger.Info("Cache engine ready with %d cache(s): %v", engine.Len(), engine.Names())

	// Build the file system configurations
	fsCfgs, err := config.BuildFilesystemConfigs(ctx, cfg)
	if err != nil {
		engine.Close()
		log.Fatalf("Failed to build file system configurations: %v", err)
	}

	// Build cluster membership. Without a cluster listener the node runs
	// standalone as the only member of an in-process cluster.
	membership, err := buildMembership(cfg)
	if err != nil {
		engine.Close()
		log.Fatalf("Failed to build cluster membership: %v", err)
	}

	proc := fs.NewProcessor(fsCfgs, engine, membership, fs.Options{
		Daemon:               cfg.Node.Daemon,
		SkipConsistencyCheck: cfg.Cluster.SkipConsistencyCheck,
	})

	// Attributes must be on the node before the join exchange.
	if err := proc.PublishAttributes(); err != nil {
		engine.Close()
		log.Fatalf("Failed to publish file system attributes: %v", err)
	}

	if err := proc.Start(); err != nil {
		engine.Close()
		log.Fatalf("Failed to start file systems: %v", err)
	}

	if err := membership.Join(ctx); err != nil {
		proc.Stop(true)
		engine.Close()
		log.Fatalf("Failed to join cluster: %v", err)
	}

	if err := proc.OnClusterReady(); err != nil {
		logger.Error("Cluster consistency check failed: %v", err)
		proc.Stop(true)
		membership.Leave(context.Background())
		engine.Close()
		os.Exit(1)
	}

	for _, fsys := range proc.FileSystems() {
		for _, ep := range proc.Endpoints(fsys.Name()) {
			logger.Info("File system %q serving on %s://%s", fsys.Name(), ep.Proto, ep.Addr)
		}
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Node is running. Press Ctrl+C to stop.")
	<-sigChan

	logger.Info("Shutdown signal received, initiating graceful shutdown...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Node.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan error, 1)
	go func() { done <- proc.Stop(false) }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("Shutdown errors: %v", err)
		}
	case <-shutdownCtx.Done():
		logger.Warn("Graceful shutdown timed out, cancelling")
		proc.Stop(true)
	}

	if err := membership.Leave(shutdownCtx); err != nil {
		logger.Warn("Cluster leave failed: %v", err)
	}
	if err := engine.Close(); err != nil {
		logger.Warn("Closing caches failed: %v", err)
	}

	logger.Info("Node stopped")
}

// buildMembership picks the membership implementation from configuration.
func buildMembership(cfg *config.Config) (cluster.Membership, error) {
	if cfg.Cluster.ListenAddr == "" {
		return cluster.NewLocalCluster().NewMember(), nil
	}

	return cluster.NewStatic(cluster.StaticConfig{
		ListenAddr:    cfg.Cluster.ListenAddr,
		AdvertiseAddr: cfg.Cluster.AdvertiseAddr,
		Seeds:         cfg.Cluster.Seeds,
		JoinTimeout:   cfg.Cluster.JoinTimeout,
	})
}

// serveMetrics exposes the Prometheus registry over HTTP.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics endpoint failed: %v", err)
	}
}
