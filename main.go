package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pathpilot/fhirserve/cache"
	"github.com/pathpilot/fhirserve/search"
	"github.com/pathpilot/fhirserve/server"
	"github.com/pathpilot/fhirserve/store"
	"github.com/pathpilot/fhirserve/tools"
	"github.com/pathpilot/fhirserve/watcher"
)

const version = "2.0.0"

func main() {
	// Parse CLI flags
	var dataDir string
	var mappingsFile string
	var addr string
	var baseURL string
	var defaultCount int
	var maxCount int
	var cacheTTL time.Duration
	var cacheSize int
	var warm bool
	var watch bool
	var verifyInterval time.Duration
	var mcpMode bool
	var logLevel string
	var logFile string

	flag.StringVar(&dataDir, "data", "data/mimic-iv-clinical-database-demo-on-fhir-2.1.0/fhir", "Directory holding the NDJSON data files")
	flag.StringVar(&mappingsFile, "mappings", "", "JSON file mapping resource types to backing files (default: built-in MIMIC-IV layout)")
	flag.StringVar(&addr, "addr", ":8000", "HTTP listen address")
	flag.StringVar(&baseURL, "base-url", "", "Base URL for bundle entry fullUrls (default: derived from each request)")
	flag.IntVar(&defaultCount, "default-count", 100, "Page size when _count is absent")
	flag.IntVar(&maxCount, "max-count", 1000, "Page size ceiling")
	flag.DurationVar(&cacheTTL, "cache-ttl", 0, "Cache entry TTL (0 = entries live until cleared)")
	flag.IntVar(&cacheSize, "cache-size", 0, "Maximum entries per cache space (0 = unbounded)")
	flag.BoolVar(&warm, "warm", false, "Precompute line counts for all backing files at startup")
	flag.BoolVar(&watch, "watch", false, "Watch the data directory and invalidate caches on file changes")
	flag.DurationVar(&verifyInterval, "verify-interval", 0, "Interval for periodic data drift verification (0 = disabled)")
	flag.BoolVar(&mcpMode, "mcp", false, "Serve MCP tools on stdio instead of HTTP")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	flag.StringVar(&logFile, "log-file", "", "Log file path (default: stderr)")
	flag.Parse()

	// In MCP mode stdout belongs to the protocol; logs must go elsewhere.
	logger := setupLogger(logLevel, logFile)

	logger.Info("starting fhirserve",
		"version", version,
		"data", dataDir,
		"defaultCount", defaultCount,
		"maxCount", maxCount,
	)
	if _, err := os.Stat(dataDir); err != nil {
		logger.Warn("data directory not found, all searches will be empty", "data", dataDir)
	}

	mappings, err := loadMappings(mappingsFile)
	if err != nil {
		logger.Error("failed to load mappings", "file", mappingsFile, "error", err)
		os.Exit(1)
	}

	catalog := store.NewCatalog(dataDir, mappings)
	lines := store.NewLineCountIndex()
	resultCache := cache.New(cacheSize, cacheTTL)
	recordStore := store.NewStore(catalog, lines, logger)
	engine := &search.Engine{
		Store:           recordStore,
		Catalog:         catalog,
		Cache:           resultCache,
		DefaultPageSize: defaultCount,
		MaxPageSize:     maxCount,
		Logger:          logger,
	}

	startTime := time.Now()
	if warm {
		counted, total := performWarmup(catalog, lines, logger)
		logger.Info("line count warmup complete",
			"files", counted,
			"resources", total,
			"duration", time.Since(startTime),
		)
	}

	if watch {
		fileWatcher, err := watcher.NewWatcher(dataDir, logger)
		if err != nil {
			logger.Warn("failed to start file watcher, continuing without live invalidation", "error", err)
		} else {
			go fileWatcher.Start()
			go handleWatcherEvents(fileWatcher, lines, resultCache, logger)
			defer fileWatcher.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if verifyInterval > 0 {
		go runPeriodicVerify(ctx, verifyInterval, lines, resultCache, logger)
	}

	if mcpMode {
		runMCP(ctx, engine, catalog, lines, resultCache, baseURL, startTime, logger)
		return
	}
	runHTTP(ctx, addr, engine, catalog, lines, resultCache, baseURL, logger)
}

// runHTTP serves the REST transport until the context is cancelled.
func runHTTP(
	ctx context.Context,
	addr string,
	engine *search.Engine,
	catalog *store.Catalog,
	lines *store.LineCountIndex,
	resultCache *cache.Cache,
	baseURL string,
	logger *slog.Logger,
) {
	srv := &server.Server{
		Engine:  engine,
		Cache:   resultCache,
		Catalog: catalog,
		Lines:   lines,
		BaseURL: baseURL,
		Version: version,
		Logger:  logger,
	}
	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("HTTP server listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("HTTP server error", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

// runMCP serves the MCP tool transport on stdio until the context is cancelled.
func runMCP(
	ctx context.Context,
	engine *search.Engine,
	catalog *store.Catalog,
	lines *store.LineCountIndex,
	resultCache *cache.Cache,
	baseURL string,
	startTime time.Time,
	logger *slog.Logger,
) {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	searchHandler := &tools.SearchHandler{Engine: engine, BaseURL: baseURL, Logger: logger}
	readHandler := &tools.ReadHandler{Engine: engine, Logger: logger}
	statusHandler := &tools.StatusHandler{
		Catalog:   catalog,
		Cache:     resultCache,
		Lines:     lines,
		StartTime: startTime,
		Logger:    logger,
	}
	clearCacheHandler := &tools.ClearCacheHandler{Cache: resultCache, Lines: lines, Logger: logger}

	mcpServer := server.Setup(searchHandler, readHandler, statusHandler, clearCacheHandler)

	logger.Info("MCP server starting on stdio")
	if err := mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		logger.Error("MCP server error", "error", err)
		os.Exit(1)
	}
}

// handleWatcherEvents processes debounced file system events. Any change to a
// data file breaks the read-only contract the caches depend on, so the line
// count of the touched file is dropped and both cache spaces are cleared.
func handleWatcherEvents(
	fileWatcher *watcher.Watcher,
	lines *store.LineCountIndex,
	resultCache *cache.Cache,
	logger *slog.Logger,
) {
	for events := range fileWatcher.Events() {
		for _, event := range events {
			lines.Invalidate(event.Path)
			logger.Info("data file changed, invalidating", "path", event.Path)
		}
		resultCache.Clear()
	}
}

// loadMappings reads a type-to-files mapping from a JSON file.
// An empty path selects the built-in MIMIC-IV layout.
func loadMappings(path string) (map[string][]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var mappings map[string][]string
	if err := json.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("parsing mappings file: %w", err)
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("mappings file %s defines no resource types", path)
	}
	return mappings, nil
}

// setupLogger creates an slog.Logger writing to stderr or a file.
func setupLogger(level string, logFile string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var writer *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot open log file %s: %v, falling back to stderr\n", logFile, err)
			writer = os.Stderr
		} else {
			writer = f
		}
	} else {
		writer = os.Stderr
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}
