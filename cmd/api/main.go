package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/netutil"

	"statusgate/internal/config"
	"statusgate/internal/gate"
	"statusgate/internal/metrics"
	"statusgate/internal/origin"
	"statusgate/internal/proxy"
	"statusgate/internal/queue"
	"statusgate/internal/ratelimit"
)

// protectedPaths require the API key.
var protectedPaths = []string{"/api/status", "/api/info"}

func main() {
	config.LoadDotEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, os.Getenv, nil); err != nil {
		log.Fatalf("❌ FATAL: %v", err)
	}
}

// run serves until ctx is cancelled. Configuration is fully validated before
// any listener is bound. ready, when set, receives the bound API address.
func run(ctx context.Context, getenv func(string) string, ready func(net.Addr)) error {
	// 1. Load configuration. A missing API key stops startup here.
	cfg, err := config.Load(getenv)
	if err != nil {
		return err
	}

	// 2. Background work outlives ctx until the server has drained, so
	// events raised by in-flight requests are still published.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	var bg sync.WaitGroup
	defer func() {
		bgCancel()
		bg.Wait()
	}()

	limiter := ratelimit.New(cfg.RateLimit.Max, cfg.RateLimit.Window)
	limiter.StartCleanup(bgCtx, cfg.RateLimit.SweepInterval)
	log.Printf("✅ Rate limiter ready (%d requests / %s, sweep %s)",
		limiter.Limit(), limiter.Window(), cfg.RateLimit.SweepInterval)

	var recorder metrics.Recorder = metrics.NoOp{}
	var prom *metrics.Prometheus
	if cfg.Server.MetricsAddr != "" {
		prom = metrics.NewPrometheus(limiter.Len)
		recorder = prom
	}

	var auditor gate.Auditor
	if cfg.Audit.RedisAddr != "" {
		log.Printf("🔌 Connecting to Redis at %s...", cfg.Audit.RedisAddr)
		if err := queue.Init(cfg.Audit.RedisAddr); err != nil {
			log.Printf("⚠️  Audit trail disabled: %v", err)
		} else {
			pub := queue.NewPublisher(queue.Client, queue.DefaultBuffer, recorder)
			auditor = pub
			bg.Add(1)
			go func() {
				defer bg.Done()
				pub.Run(bgCtx)
				queue.Client.Close()
			}()
			log.Println("✅ Audit trail publishing to Redis")
		}
	}

	policy := origin.Parse(cfg.Gate.AllowedOrigins)
	g := gate.New(&gate.State{
		Credential:   cfg.Gate.Credential,
		Origins:      policy,
		Limiter:      limiter,
		Resolver:     proxy.NewResolver(cfg.Gate.TrustProxyHops),
		StrictOrigin: cfg.Gate.StrictOrigin,
	},
		gate.WithProtected(protectedPaths...),
		gate.WithAuditor(auditor),
		gate.WithRecorder(recorder),
	)
	log.Printf("✅ Allowed origins: %v (strict=%t)", policy.Origins(), cfg.Gate.StrictOrigin)

	// 3. Bind listeners.
	ln, err := net.Listen("tcp", ":"+cfg.Server.Port)
	if err != nil {
		return fmt.Errorf("listen on :%s: %w", cfg.Server.Port, err)
	}
	if cfg.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConnections)
		log.Printf("✅ Connection cap: %d", cfg.Server.MaxConnections)
	}

	server := &http.Server{
		Handler:           newRouter(g, newHandlers(cfg.Server)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	var metricsServer *http.Server
	if prom != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
		log.Printf("📈 Metrics on %s/metrics", cfg.Server.MetricsAddr)
	}

	log.Printf("🚀 %s v%s running on %s", cfg.Server.ServiceName, cfg.Server.ServiceVersion, ln.Addr())
	if ready != nil {
		ready(ln.Addr())
	}

	// 4. Graceful shutdown.
	var serveErr error
	select {
	case <-ctx.Done():
		log.Println("⏳ Shutdown signal received, draining in-flight requests...")
	case serveErr = <-errCh:
		log.Printf("❌ %v", serveErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️  Metrics server shutdown: %v", err)
		}
	}
	if serveErr != nil {
		return serveErr
	}
	log.Println("✅ Server shut down cleanly.")
	return nil
}

func newRouter(g *gate.Gate, h *handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(gate.Recover)
	r.Use(g.Middleware)
	r.Use(middleware.GetHead)

	r.NotFound(gate.NotFound)
	r.MethodNotAllowed(gate.NotFound)

	r.Get("/health", gate.Handle(h.health))
	r.Get("/api/status", gate.Handle(h.status))
	r.Get("/api/info", gate.Handle(h.info))
	r.Get("/", h.static)
	r.Get("/*", h.static)

	return r
}
