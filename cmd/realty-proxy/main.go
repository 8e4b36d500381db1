package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/austindbirch/realty_relay/internal/config"
	"github.com/austindbirch/realty_relay/internal/logging"
	"github.com/austindbirch/realty_relay/internal/metrics"
	"github.com/austindbirch/realty_relay/internal/proxy"
	"github.com/austindbirch/realty_relay/internal/realty"
	"github.com/austindbirch/realty_relay/internal/retry"
	"github.com/austindbirch/realty_relay/internal/tracing"
	"github.com/austindbirch/realty_relay/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.FromEnv()

	logging.SetDefaultService(cfg.AppName)
	logger := logging.Default()
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		logger.Plain().WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if cfg.Tracing {
		shutdown, err := tracing.InitTracing(ctx, cfg.AppName)
		if err != nil {
			logger.Plain().WithError(err).Fatal("Failed to initialize tracing")
		}
		defer shutdown()
	}

	if err := run(ctx, cfg); err != nil {
		logger.Plain().WithError(err).Error("realty proxy stopped with error")
		os.Exit(1)
	}
	logger.Plain().Info("realty proxy stopped")
}

// webhookClients builds the single-attempt client used by the proxy routes
// and the retrying client used by the realty agent.
func webhookClients(cfg config.Config) (proxyClient, agentClient *webhook.Client, err error) {
	agentPolicy := retry.Policy{
		MaxAttempts:       cfg.Webhook.MaxAttempts,
		InitialBackoff:    cfg.Webhook.InitialBackoff,
		RetryClientErrors: cfg.Webhook.RetryClientErrors,
	}
	proxyPolicy := agentPolicy
	proxyPolicy.MaxAttempts = cfg.Proxy.MaxAttempts

	proxyClient, err = webhook.New(cfg.Webhook.URL,
		webhook.WithParam(webhook.ParamContactMessage),
		webhook.WithPolicy(proxyPolicy),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("proxy webhook client: %w", err)
	}
	agentClient, err = webhook.New(cfg.Webhook.URL,
		webhook.WithParam(cfg.Webhook.Param),
		webhook.WithPolicy(agentPolicy),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("agent webhook client: %w", err)
	}
	return proxyClient, agentClient, nil
}

// newServers returns the API server and, when MetricsPort differs from
// HTTPPort, a separate metrics server.
func newServers(cfg config.Config, reg *prometheus.Registry) (*http.Server, *http.Server, error) {
	proxyClient, agentClient, err := webhookClients(cfg)
	if err != nil {
		return nil, nil, err
	}

	api := proxy.New(cfg.Proxy, proxyClient, realty.NewAgent(agentClient))
	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	mux := http.NewServeMux()
	mux.Handle("/", api.Routes())

	var metricsSrv *http.Server
	if cfg.MetricsPort == "" || cfg.MetricsPort == cfg.HTTPPort {
		mux.Handle("/metrics", metricsHandler)
	} else {
		mm := http.NewServeMux()
		mm.Handle("/metrics", metricsHandler)
		metricsSrv = &http.Server{Addr: cfg.MetricsPort, Handler: mm, ReadHeaderTimeout: 5 * time.Second}
	}

	apiSrv := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return apiSrv, metricsSrv, nil
}

func run(ctx context.Context, cfg config.Config) error {
	logger := logging.Default()

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	apiSrv, metricsSrv, err := newServers(cfg, reg)
	if err != nil {
		return err
	}
	servers := []*http.Server{apiSrv}
	if metricsSrv != nil {
		servers = append(servers, metricsSrv)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Plain().WithField("addr", srv.Addr).Info("realty proxy HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Plain().Info("shutting down realty proxy")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
