// Command authd is the authentication core's entrypoint: it loads
// configuration, wires the credential store, session store and protocol
// handler, and serves UDP until signaled to stop. It loads config, builds
// the long-lived pieces, installs a signal handler that cancels a context,
// and runs until canceled.
package main

import (
	"context"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sauerbraten/srpauth/internal/authproto"
	"github.com/sauerbraten/srpauth/internal/config"
	"github.com/sauerbraten/srpauth/internal/credentials"
	"github.com/sauerbraten/srpauth/internal/listener"
	"github.com/sauerbraten/srpauth/internal/logging"
	"github.com/sauerbraten/srpauth/internal/session"
)

var sessionsGauge = expvar.NewInt("authd.active_sessions")

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load("config.json")
	if err != nil {
		log.Println("loading config:", err)
		return 1
	}

	logger := logging.NewTextLogger(logging.ParseLevel(cfg.Auth.LogLevel))

	creds, err := buildCredentialStore(cfg)
	if err != nil {
		logger.Error(context.Background(), "building credential store", "err", err)
		return 1
	}
	if closer, ok := creds.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	sessions := session.New(cfg.SessionTTL())
	handler := authproto.New(creds, sessions, logger)
	if cfg.Auth.MaxInFlight > 0 {
		handler.MaxInFlight = int32(cfg.Auth.MaxInFlight)
	}

	l, err := listener.Bind(cfg.Auth.Port, handler, logger, cfg.Auth.Workers)
	if err != nil {
		logger.Error(context.Background(), "binding udp listener", "port", cfg.Auth.Port, "err", err)
		return 1
	}
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	installSignalHandler(cancel)

	if cfg.Auth.MetricsAddr != "" {
		go serveMetrics(logger, cfg.Auth.MetricsAddr)
	}

	stopSweep := startSessionSweeper(ctx, sessions, cfg.SessionTTL())
	defer stopSweep()

	logger.Info(ctx, "authd listening", "port", cfg.Auth.Port, "workers", cfg.Auth.Workers)
	if err := l.Serve(ctx); err != nil {
		logger.Error(ctx, "serve returned error", "err", err)
		return 1
	}

	logger.Info(ctx, "shut down cleanly")
	return 0
}

func buildCredentialStore(cfg *config.Config) (credentials.Store, error) {
	if cfg.Database.URI == "" {
		return credentials.NewMemoryStore(), nil
	}
	return credentials.NewPostgresStore(cfg.Database.URI)
}

// installSignalHandler cancels cancelFunc on SIGINT or SIGTERM.
func installSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancelFunc()
	}()
}

// startSessionSweeper runs the periodic backstop sweep every tenth of the
// TTL, stopping when ctx is canceled. The returned stop func blocks until
// the sweep goroutine has exited.
func startSessionSweeper(ctx context.Context, sessions *session.Store, ttl time.Duration) (stop func()) {
	interval := ttl / 10
	if interval < time.Second {
		interval = time.Second
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				sessions.Sweep(time.Now())
				sessionsGauge.Set(int64(sessions.Len()))
			}
		}
	}()
	return func() { <-done }
}

// serveMetrics exposes expvar counters on addr, per auth.metrics_addr.
// expvar is the standard library's own counter registry; no third-party
// metrics exporter appears anywhere in the example pack, so this one
// ambient concern is left on the standard library (see DESIGN.md).
func serveMetrics(logger logging.Logger, addr string) {
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Warn(context.Background(), "metrics server stopped", "err", err)
	}
}
