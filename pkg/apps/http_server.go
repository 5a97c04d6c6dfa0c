package apps

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mcu-template/taskboot/pkg/netjoin"
	"github.com/mcu-template/taskboot/pkg/tasks"
)

const shutdownTimeout = 5 * time.Second

// RunHTTPServer joins the network and serves a status page on the
// configured port until ctx is done.
func RunHTTPServer(ctx context.Context, env *Env) error {
	env = env.withDefaults()
	env.Logger.Info("http server app starting", "addr", env.Config.HTTP.Addr())

	snap, err := joinNetwork(ctx, env)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", env.Config.HTTP.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", env.Config.HTTP.Addr(), err)
	}
	return serveStatus(ctx, env, ln, snap)
}

// serveStatus serves on ln until ctx is done.
func serveStatus(ctx context.Context, env *Env, ln net.Listener, snap netjoin.Snapshot) error {
	srv := &http.Server{
		Handler:           NewStatusHandler(env),
		ReadHeaderTimeout: 5 * time.Second,
	}

	port := env.Config.HTTP.Port
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	advertise(ctx, env, HTTPServer, port, snap)
	defer env.Advertiser.StopAll()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	env.Logger.Info("serving", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NewStatusHandler serves the status page on / and a liveness probe on
// /healthz.
func NewStatusHandler(env *Env) http.Handler {
	env = env.withDefaults()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintln(w, "ok")
	})

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		h := tasks.HeapStats()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintf(w, "taskboot on %s\n", env.Config.Board.Name)
		_, _ = fmt.Fprintf(w, "firmware: %s\n", env.Config.Board.Firmware)
		_, _ = fmt.Fprintf(w, "uptime: %s\n", time.Since(env.Started).Truncate(time.Second))
		if env.Joiner != nil {
			s := env.Joiner.Snapshot()
			_, _ = fmt.Fprintf(w, "network: %s %s (%s, retries %d/%d)\n", s.Outcome, addrString(s), s.SSID, s.RetryCount, s.MaxRetries)
		}
		_, _ = fmt.Fprintf(w, "heap: free %d KB, in use %d KB\n", h.FreeKB, h.InUseKB)
		_, _ = fmt.Fprintf(w, "goroutines: %d\n", h.Goroutines)
	})

	return mux
}

func addrString(s netjoin.Snapshot) string {
	if !s.Address.IsValid() {
		return "-"
	}
	return s.Address.String()
}
