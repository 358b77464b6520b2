// ABOUTME: Gateway orchestrator that wires stores, the authorization gate and the MCP server
// ABOUTME: Manages HTTP, gRPC health and Tailscale listeners plus the session sweep lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"tailscale.com/tsnet"

	"github.com/2389/books-mcp/internal/auth"
	"github.com/2389/books-mcp/internal/books"
	"github.com/2389/books-mcp/internal/builtins"
	"github.com/2389/books-mcp/internal/config"
	"github.com/2389/books-mcp/internal/exchange"
	"github.com/2389/books-mcp/internal/mcp"
	"github.com/2389/books-mcp/internal/metrics"
	"github.com/2389/books-mcp/internal/packs"
	"github.com/2389/books-mcp/internal/store"
)

// Gateway orchestrates the books-mcp server components.
type Gateway struct {
	config  *config.Config
	logger  *slog.Logger
	version string

	// audit is nil when database.path is empty
	audit *store.SQLiteStore

	sessions auth.SessionStore
	redis    *redis.Client // nil unless session.store is redis
	gate     *auth.Gate
	books    *books.Repository
	metrics  *metrics.Recorder

	registry   *packs.Registry
	dispatcher *packs.Dispatcher
	mcpServer  *mcp.Server

	httpServer   *http.Server
	grpcServer   *grpc.Server   // nil unless server.grpc_addr is set
	healthServer *health.Server // nil unless server.grpc_addr is set
	tsnetServer  *tsnet.Server
}

// initAuditStore opens the audit database, or returns nil when auditing is disabled.
func initAuditStore(cfg *config.Config) (*store.SQLiteStore, error) {
	if cfg.Database.Path == "" {
		return nil, nil
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing audit store: %w", err)
	}
	return s, nil
}

// initSessionStore creates the configured session backend.
func initSessionStore(cfg *config.Config) (auth.SessionStore, *redis.Client, error) {
	if cfg.Session.Store != config.StoreRedis {
		return auth.NewMemoryStore(nil), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Session.Redis.Addr,
		Password: cfg.Session.Redis.Password,
		DB:       cfg.Session.Redis.DB,
	})
	s, err := auth.NewRedisStore(auth.RedisStoreConfig{
		Client:    client,
		Prefix:    cfg.Session.Redis.Prefix,
		Retention: cfg.Session.Redis.Retention,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("initializing redis session store: %w", err)
	}
	return s, client, nil
}

// loadRates reads the rates file when one is configured.
func loadRates(cfg *config.Config) (*exchange.Rates, error) {
	if cfg.Data.RatesPath == "" {
		return exchange.DefaultRates(), nil
	}
	rates, err := exchange.LoadRates(cfg.Data.RatesPath)
	if err != nil {
		return nil, fmt.Errorf("loading rates: %w", err)
	}
	return rates, nil
}

// New creates a Gateway from configuration. version is reported to MCP clients.
func New(cfg *config.Config, logger *slog.Logger, version string) (*Gateway, error) {
	gw := &Gateway{
		config:  cfg,
		logger:  logger.With("component", "gateway"),
		version: version,
		metrics: metrics.New(),
	}

	var err error
	if gw.books, err = books.Load(cfg.Data.BooksPath); err != nil {
		return nil, fmt.Errorf("loading books: %w", err)
	}
	rates, err := loadRates(cfg)
	if err != nil {
		return nil, err
	}

	if gw.audit, err = initAuditStore(cfg); err != nil {
		return nil, err
	}
	if gw.sessions, gw.redis, err = initSessionStore(cfg); err != nil {
		gw.closeStores()
		return nil, err
	}

	if err := gw.initCore(rates); err != nil {
		gw.closeStores()
		return nil, err
	}

	if cfg.Server.GRPCAddr != "" || cfg.Tailscale.Enabled {
		gw.grpcServer, gw.healthServer = newHealthGRPCServer()
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	gw.logger.Info("gateway ready",
		"books", gw.books.Len(),
		"currencies", len(rates.Currencies()),
		"session_store", cfg.Session.Store,
		"audit", gw.audit != nil,
		"credentials", len(cfg.Auth.Users) > 0,
	)
	return gw, nil
}

// initCore builds the registry, gate, tools, dispatcher and MCP server.
// The registry is the gate's classifier, so it exists before the gate and
// is filled after it.
func (g *Gateway) initCore(rates *exchange.Rates) error {
	cfg := g.config
	logger := g.logger

	codec, err := auth.NewCodec([]byte(cfg.Auth.JWTSecret), auth.WithTTL(cfg.Session.TTL))
	if err != nil {
		return fmt.Errorf("creating token codec: %w", err)
	}

	g.registry = packs.NewRegistry(logger.With("component", "pack-registry"))

	g.gate, err = auth.NewGate(auth.GateConfig{
		Store:       g.sessions,
		Codec:       codec,
		Credentials: auth.NewCredentials(cfg.Auth.Users),
		Classifier:  g.registry,
		TTL:         cfg.Session.TTL,
		Logger:      logger.With("component", "gate"),
		Observer:    g.metrics,
	})
	if err != nil {
		return fmt.Errorf("creating authorization gate: %w", err)
	}
	g.metrics.TrackConnections(g.gate.Connections)

	if err := builtins.RegisterAll(g.registry, builtins.Deps{
		Gate:  g.gate,
		Books: g.books,
		Rates: rates,
	}); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	dcfg := packs.DispatcherConfig{
		Registry: g.registry,
		Gate:     g.gate,
		Recorder: g.metrics,
		Logger:   logger.With("component", "dispatcher"),
	}
	if g.audit != nil {
		dcfg.Auditor = g.audit
	}
	g.dispatcher, err = packs.NewDispatcher(dcfg)
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	g.mcpServer, err = mcp.NewServer(mcp.Config{
		Dispatcher: g.dispatcher,
		Releaser:   g.gate,
		Logger:     logger.With("component", "mcp"),
		Version:    g.version,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}
	return nil
}

// routes builds the HTTP mux.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)
	if g.config.Metrics.Enabled {
		mux.Handle(g.config.Metrics.Path, g.metrics.Handler())
		g.logger.Info("metrics enabled", "path", g.config.Metrics.Path)
	}
	g.mcpServer.RegisterRoutes(mux)
	mux.Handle("/", g.mcpServer.DocsHandler())
	return mux
}

// Handler returns the HTTP handler serving every endpoint.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// setupTCPListeners creates standard TCP listeners. grpcLn is nil when the
// gRPC health server is disabled.
func (g *Gateway) setupTCPListeners() (grpcLn, httpLn net.Listener, err error) {
	g.logger.Info("starting gateway",
		"grpc_addr", g.config.Server.GRPCAddr,
		"http_addr", g.config.Server.HTTPAddr,
	)

	httpLn, err = net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	if g.grpcServer != nil {
		grpcLn, err = net.Listen("tcp", g.config.Server.GRPCAddr)
		if err != nil {
			_ = httpLn.Close()
			return nil, nil, fmt.Errorf("listening on gRPC address: %w", err)
		}
	}

	return grpcLn, httpLn, nil
}

// setupListeners creates listeners based on configuration (Tailscale or TCP).
func (g *Gateway) setupListeners(ctx context.Context) (grpcLn, httpLn net.Listener, err error) {
	if g.config.Tailscale.Enabled {
		g.warnIgnoredAddresses()
		return g.setupTailscaleListeners(ctx)
	}
	return g.setupTCPListeners()
}

// startServers starts the servers in goroutines, returning an error channel.
func (g *Gateway) startServers(grpcLn, httpLn net.Listener) chan error {
	errCh := make(chan error, 2)

	if grpcLn != nil {
		go func() {
			g.logger.Info("gRPC health server listening", "addr", grpcLn.Addr().String())
			if err := g.grpcServer.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	go func() {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := g.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		g.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (g *Gateway) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		g.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// Run starts the servers and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if a server fails.
func (g *Gateway) Run(ctx context.Context) error {
	grpcListener, httpListener, err := g.setupListeners(ctx)
	if err != nil {
		return err
	}

	loopCtx, stopLoops := context.WithCancel(ctx)
	defer stopLoops()
	g.startBackground(loopCtx)

	errCh := g.startServers(grpcListener, httpListener)
	serverErr := g.waitForShutdownSignal(ctx, errCh)
	stopLoops()

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// ServeStdio serves MCP over the given streams instead of HTTP, then
// releases every resource.
func (g *Gateway) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	loopCtx, stopLoops := context.WithCancel(ctx)
	defer stopLoops()
	g.startBackground(loopCtx)

	err := g.mcpServer.ServeStdio(ctx, in, out)
	stopLoops()
	g.closeStores()
	return err
}

// startBackground launches the periodic loops.
func (g *Gateway) startBackground(ctx context.Context) {
	if interval := g.config.Session.SweepInterval; interval > 0 {
		go g.sweepLoop(ctx, interval)
	}
	if g.healthServer != nil {
		go g.watchReadiness(ctx, readinessInterval)
	}
}

// sweepLoop removes expired sessions until ctx is done.
func (g *Gateway) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g.logger.Info("session sweep enabled", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweepOnce(ctx)
		}
	}
}

func (g *Gateway) sweepOnce(ctx context.Context) {
	n, err := g.gate.Sweep(ctx)
	if err != nil {
		g.logger.Warn("session sweep failed", "error", err)
		return
	}
	if n > 0 {
		g.logger.Info("swept expired sessions", "count", n)
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// shutdownGRPCServer gracefully stops the gRPC server or force-stops on context cancel.
func (g *Gateway) shutdownGRPCServer(ctx context.Context) {
	if g.grpcServer == nil {
		return
	}
	g.healthServer.Shutdown()

	stopped := make(chan struct{})
	go func() {
		g.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		g.grpcServer.Stop()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeStores closes the session and audit stores.
func (g *Gateway) closeStores() []error {
	var errs []error
	if g.sessions != nil {
		errs = appendCloseError(errs, "session store close", g.sessions.Close())
		g.sessions = nil
	}
	if g.audit != nil {
		errs = appendCloseError(errs, "audit store close", g.audit.Close())
		g.audit = nil
	}
	return errs
}

// Shutdown gracefully stops all servers and releases resources. HTTP
// sessions are released before the stores close.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.shutdownGRPCServer(ctx)
	g.mcpServer.Close(ctx)

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = append(errs, g.closeStores()...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// checkReady reports whether the catalog is loaded and every backend answers.
func (g *Gateway) checkReady(ctx context.Context) error {
	if g.books == nil {
		return errors.New("book catalog not loaded")
	}
	if g.redis != nil {
		if err := g.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("session store: %w", err)
		}
	}
	if g.audit != nil {
		if err := g.audit.Ping(ctx); err != nil {
			return fmt.Errorf("audit store: %w", err)
		}
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK when checkReady passes.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := g.checkReady(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "not ready: %v", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d books, %d connections)", g.books.Len(), g.gate.Connections())
}
