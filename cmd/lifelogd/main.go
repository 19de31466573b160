package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/aschepis/backscratcher/lifelog/config"
	"github.com/aschepis/backscratcher/lifelog/conversations"
	"github.com/aschepis/backscratcher/lifelog/engine"
	"github.com/aschepis/backscratcher/lifelog/graph"
	"github.com/aschepis/backscratcher/lifelog/locale"
	lifeloglogger "github.com/aschepis/backscratcher/lifelog/logger"
	"github.com/aschepis/backscratcher/lifelog/mcp"
	"github.com/aschepis/backscratcher/lifelog/memory"
	"github.com/aschepis/backscratcher/lifelog/memory/miniostore"
	"github.com/aschepis/backscratcher/lifelog/migrations"
	"github.com/aschepis/backscratcher/lifelog/runtime"
	"github.com/aschepis/backscratcher/lifelog/server"
	"github.com/aschepis/backscratcher/lifelog/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr     = flag.String("addr", "", "Listen address (host:port or unix socket path). Overrides server.addr")
		logFile  = flag.String("logfile", "", "Path to log file. If not set, logs to stdout")
		pretty   = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		dbPath   = flag.String("db", "", "Path to SQLite database file. Overrides database.path")
		mcpStdio = flag.Bool("mcp-stdio", false, "Serve MCP tools on stdin/stdout instead of HTTP")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}
	// stdout carries the MCP protocol
	if *mcpStdio && *logFile == "" {
		*logFile = lifeloglogger.DefaultLogFile
		*pretty = false
	}

	logger, err := lifeloglogger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.LoadServerConfig(config.GetServerConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = config.ExpandPath(*dbPath)
	}
	logger.Info().
		Str("addr", cfg.Server.Addr).
		Str("db", cfg.Database.Path).
		Strs("backends", cfg.LLMBackends).
		Str("defaultModel", cfg.DefaultModel).
		Msg("lifelogd starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------------------
	// 1. Database + stores
	// ---------------------------

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors

	blobs, err := newBlobStore(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	memoryStore := memory.NewStore(db, blobs, logger)
	exchangeStore := conversations.NewStore(db)

	for _, mc := range cfg.ModelConfigs {
		if err := memoryStore.SaveModelConfig(ctx, mc); err != nil {
			return fmt.Errorf("failed to seed model config %s: %w", mc.ModelID, err)
		}
	}
	if n := len(cfg.ModelConfigs); n > 0 {
		logger.Info().Int("count", n).Msg("Seeded model configs from configuration")
	}

	// ---------------------------
	// 2. Engine + service
	// ---------------------------

	loc, err := locale.Parse(cfg.Locale)
	if err != nil {
		return err
	}
	registry := config.NewProviderRegistry(cfg)
	eng := engine.New(registry, config.NewClientFactory(cfg, logger), engine.Options{
		AnalysisDelay: cfg.Simulation.AnalysisDelay,
		ChatDelay:     cfg.Simulation.ChatDelay,
		Retry:         cfg.Retry.Policy(),
	}, logger)

	svc := service.New(eng, memoryStore, exchangeStore, service.Options{
		DefaultModel: cfg.DefaultModel,
		Locale:       loc,
		Layout: graph.Options{
			Width:  cfg.Layout.Width,
			Height: cfg.Layout.Height,
			Radius: cfg.Layout.Radius,
		},
	}, logger)

	if *mcpStdio {
		return mcp.NewServer(svc, service.Version, logger).ServeStdio(ctx, os.Stdin, os.Stdout)
	}

	// ---------------------------
	// 3. Background auto-analysis
	// ---------------------------

	if cfg.AutoAnalyze.Enabled {
		analyzer, err := newAutoAnalyzer(cfg, memoryStore, eng, loc, logger)
		if err != nil {
			return err
		}
		go analyzer.Start(ctx)
	} else {
		logger.Info().Msg("Auto-analysis is disabled")
	}

	// ---------------------------
	// 4. HTTP server
	// ---------------------------

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	}, svc)

	listener, cleanup, err := listen(cfg.Server.Addr, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server did not shut down cleanly")
		}
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info().Msg("lifelogd shutdown complete")
	return nil
}

func openDatabase(cfg *config.ServerConfig, logger zerolog.Logger) (*sql.DB, error) {
	path := cfg.Database.Path
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	logger.Info().Str("path", path).Msg("Opening database")
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := migrations.RunMigrations(db, cfg.Database.Migrations, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func newBlobStore(ctx context.Context, cfg *config.ServerConfig, db *sql.DB, logger zerolog.Logger) (memory.BlobStore, error) {
	if cfg.Media.Backend != "minio" {
		return memory.NewSQLBlobStore(db), nil
	}
	m := cfg.Media.Minio
	store, err := miniostore.New(ctx, miniostore.Options{
		Endpoint:  m.Endpoint,
		AccessKey: m.AccessKey,
		SecretKey: m.SecretKey,
		Bucket:    m.Bucket,
		Secure:    m.Secure,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio media store: %w", err)
	}
	return store, nil
}

func newAutoAnalyzer(cfg *config.ServerConfig, store *memory.Store, eng *engine.Engine, loc locale.Locale, logger zerolog.Logger) (*runtime.AutoAnalyzer, error) {
	schedule, err := runtime.ParseSchedule(cfg.AutoAnalyze.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid auto_analyze.schedule: %w", err)
	}
	model := cfg.AutoAnalyze.Model
	if model == "" {
		model = cfg.DefaultModel
	}
	if cfg.AutoAnalyze.Locale != "" {
		if loc, err = locale.Parse(cfg.AutoAnalyze.Locale); err != nil {
			return nil, fmt.Errorf("invalid auto_analyze.locale: %w", err)
		}
	}
	return runtime.NewAutoAnalyzer(store, eng, runtime.AutoAnalyzerOptions{
		Schedule:  schedule,
		Model:     model,
		Locale:    loc,
		BatchSize: cfg.AutoAnalyze.BatchSize,
	}, logger)
}

// listen opens a TCP listener, or a Unix socket when addr is a path. The
// returned cleanup removes the socket file.
func listen(addr string, logger zerolog.Logger) (net.Listener, func(), error) {
	if !strings.HasPrefix(addr, "/") && !strings.HasPrefix(addr, "unix://") {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		return l, func() {}, nil
	}

	socket := strings.TrimPrefix(addr, "unix://")
	if err := os.Remove(socket); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("socket", socket).Msg("Failed to remove existing socket file")
	}
	l, err := net.Listen("unix", socket)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", socket, err)
	}
	return l, func() {
		if err := os.Remove(socket); err != nil && !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("socket", socket).Msg("Failed to remove socket file on shutdown")
		}
	}, nil
}
