package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"placecell.org/internal/obs"
	"placecell.org/internal/portalmock"
)

var version = "0.1.0"

func main() {
	log.SetFlags(0)
	var (
		addr   = flag.String("addr", envOr("PORTALMOCK_ADDR", ":5000"), "listen address")
		secret = flag.String("secret", envOr("PORTALMOCK_SECRET", "portalmock-dev-secret"), "token signing secret")
		otp    = flag.String("otp", envOr("PORTALMOCK_OTP", portalmock.DefaultOTP), "code accepted by OTP verification")
		rps    = flag.Float64("rate", 0, "per-client requests per second (0 disables limiting)")
		burst  = flag.Int("burst", 10, "per-client burst")
		seed   = flag.Bool("seed", true, "create demo accounts and postings")
		level  = flag.String("log-level", envOr("PORTALMOCK_LOG_LEVEL", "info"), "debug, info, warn or error")
	)
	flag.Parse()
	obs.SetLevel(obs.ParseLevel(*level))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs.RegisterBuildInfo(reg, "portalmock", version, "")

	opts := []portalmock.Option{portalmock.WithOTP(*otp), portalmock.WithRegistry(reg)}
	if *rps > 0 {
		opts = append(opts, portalmock.WithRateLimit(*rps, *burst))
	}
	portal, err := portalmock.New(*secret, opts...)
	if err != nil {
		log.Fatalf("portalmock: %v", err)
	}
	if *seed {
		if err := portal.SeedDemo(); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.Handler(reg))
	mux.Handle("/", portal.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	obs.Log(obs.LevelInfo, "portalmock starting", map[string]any{"addr": srv.Addr, "version": version, "seeded": *seed})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	obs.Log(obs.LevelInfo, "portalmock shutting down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	obs.Log(obs.LevelInfo, "portalmock stopped", nil)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
