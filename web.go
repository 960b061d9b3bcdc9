/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/gamenight/internal/roster"
	"github.com/Seednode/gamenight/internal/signup"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("gamenight v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Version page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func newRouter(cfg *Config, e *signup.Engine, players *roster.Roster, hub *Hub, reg *prometheus.Registry, errs chan<- error) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		logf(cfg, "PANIC: %v serving %s to %s", i, r.URL.Path, realIP(r))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		_, _ = io.WriteString(w, newPage(cfg, "Server Error", "An error has occurred. Please try again."))
	}

	mux.GET(cfg.prefix+"/", serveHomePage(cfg, e, errs))

	mux.POST(cfg.prefix+"/", serveForm(cfg, e, errs))

	mux.GET(cfg.prefix+"/api/state", serveState(cfg, e, errs))

	mux.POST(cfg.prefix+"/api/register", serveCommand(cfg, e, "register", errs))

	mux.POST(cfg.prefix+"/api/unregister", serveCommand(cfg, e, "unregister", errs))

	if cfg.adminToken != "" {
		mux.POST(cfg.prefix+"/api/admin/credential", serveCredentialReset(cfg, e, players, errs))
	}

	mux.GET(cfg.prefix+"/ws", serveLive(cfg, hub))

	mux.GET(cfg.prefix+"/qr", serveQR(cfg, errs))

	mux.GET(cfg.prefix+"/assets/*asset", serveAssets(cfg, errs))

	mux.GET(cfg.prefix+"/favicons/*favicon", serveFavicons(cfg, errs))

	mux.GET(cfg.prefix+"/favicon.svg", serveFavicons(cfg, errs))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, e, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))

	if cfg.metrics && reg != nil {
		mux.Handler("GET", cfg.prefix+"/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	return mux
}

func ServePage(ctx context.Context, cfg *Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := newLogger(cfg, nil)

	logf(cfg, "START: gamenight v%s", releaseVersion)

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	window, err := cfg.window()
	if err != nil {
		return err
	}

	players, err := roster.Load(cfg.roster)
	if err != nil {
		return err
	}

	logf(cfg, "ROSTER: Loaded %d players from %s", players.Len(), cfg.roster)

	store, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.store, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logf(cfg, "STORE: Close failed: %v", err)
		}
	}()

	logf(cfg, "STORE: Using %s", storeDescription(cfg))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := newHub(cfg)

	engine, err := signup.New(store, players, window,
		signup.WithLogger(logger),
		signup.WithPromRegistry(reg),
		signup.WithMaxSlots(cfg.maxSlots),
		signup.WithMinPlayers(cfg.minPlayers),
		signup.WithPriorityCarryover(cfg.priorityCarryover),
		signup.WithClosedUnregister(cfg.allowClosedUnregister),
		signup.WithOnChange(hub.notify),
	)
	if err != nil {
		return err
	}

	logf(cfg, "WINDOW: %s, %d seats, %d players needed", window, cfg.maxSlots, cfg.minPlayers)

	go hub.run(ctx, engine)

	rolloverDone := startRollover(ctx, cfg, engine)

	errs := make(chan error, 64)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errs:
				logf(cfg, "ERROR: %v", err)
			}
		}
	}()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newRouter(cfg, engine, players, hub, reg, errs),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		logf(cfg, "SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)

		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			serveErr <- srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			serveErr <- srv.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	// The store is closed on return, so nothing may still be using it.
	cancel()
	<-hub.done
	<-rolloverDone

	logf(cfg, "STOP: gamenight v%s", releaseVersion)

	return err
}

// startRollover runs the scheduled rollover loop when an interval is set. The
// returned channel is closed once the loop has stopped.
func startRollover(ctx context.Context, cfg *Config, e *signup.Engine) <-chan struct{} {
	done := make(chan struct{})

	if cfg.rolloverInterval <= 0 {
		close(done)

		return done
	}

	logf(cfg, "ROLLOVER: Checking every %s", cfg.rolloverInterval)

	go func() {
		defer close(done)

		e.Run(ctx, cfg.rolloverInterval)
	}()

	return done
}
