package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/cloudbox/tally/reporter"
)

const serverTimeout = 30 * time.Second

func getRouter(rep *reporter.Reporter) chi.Router {
	mux := chi.NewRouter()

	// Middleware
	mux.Use(middleware.Recoverer)

	// Logging-related middleware
	mux.Use(hlog.NewHandler(log.Logger))
	mux.Use(hlog.RequestIDHandler("id", "request-id"))
	mux.Use(hlog.URLHandler("url"))
	mux.Use(hlog.MethodHandler("method"))
	mux.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Int("status", status).
			Dur("duration", duration).
			Msg("Request Processed")
	}))

	// Health check
	mux.Get("/health", healthHandler(rep))

	// Counters, as last reported. Reading them never resets anything.
	mux.Get("/counters", countersHandler(rep))

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(reporter.NewCollector(rep))
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	return mux
}

// startHTTPServers starts one goroutine per host address that serves the router.
// Calls log.Fatal if any server fails to start.
func startHTTPServers(cfg config, router http.Handler) {
	for _, hostAddr := range cfg.Host {
		go func(host string) {
			addr := host
			if !strings.Contains(addr, ":") {
				addr = fmt.Sprintf("%s:%d", host, cfg.Port)
			}

			log.Info().Str("addr", addr).Msg("Server Starting")
			server := &http.Server{
				Addr:         addr,
				Handler:      router,
				ReadTimeout:  serverTimeout,
				WriteTimeout: serverTimeout,
			}
			if listenErr := server.ListenAndServe(); listenErr != nil {
				log.Fatal().
					Str("addr", addr).
					Err(listenErr).
					Msg("Server Start Failed")
			}
		}(hostAddr)
	}
}

func healthHandler(rep *reporter.Reporter) http.HandlerFunc {
	return func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")

		switch {
		case !ready.Load():
			rw.WriteHeader(http.StatusServiceUnavailable)
			_, _ = rw.Write([]byte(`{"status":"initializing"}`))
		case !rep.Stats().Healthy():
			rw.WriteHeader(http.StatusServiceUnavailable)
			_, _ = rw.Write([]byte(`{"status":"failing"}`))
		default:
			rw.WriteHeader(http.StatusOK)
			_, _ = rw.Write([]byte(`{"status":"ready"}`))
		}
	}
}

func countersHandler(rep *reporter.Reporter) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rec, ok := rep.Last()
		if !ok {
			rw.WriteHeader(http.StatusNoContent)
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		if err := rec.Encode(rw); err != nil {
			hlog.FromRequest(r).Warn().
				Err(err).
				Msg("Counters Write Failed")
		}
	}
}
