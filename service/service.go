package service

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-theorem/metrics"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"

	MetricsHost = "0.0.0.0"
	MetricsPort = "7300"
)

// Service runs the healthz and metrics HTTP servers next to the test loop.
type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer

	healthzAddr string
	metricsAddr string
}

// New creates a service listening on the default ports. status may be nil, in which
// case /healthz always answers OK.
func New(status StatusFunc) *Service {
	return &Service{
		Healthz:     &HealthzServer{status: status},
		Metrics:     &MetricsServer{},
		healthzAddr: net.JoinHostPort(HealthzHost, HealthzPort),
		metricsAddr: net.JoinHostPort(MetricsHost, MetricsPort),
	}
}

// WithAddrs overrides the listen addresses.
func (s *Service) WithAddrs(healthzAddr, metricsAddr string) *Service {
	s.healthzAddr = healthzAddr
	s.metricsAddr = metricsAddr
	return s
}

// Start launches both servers in the background. Listener errors are logged and
// counted, not returned.
func (s *Service) Start(ctx context.Context) {
	log.Info("service starting")

	go func() {
		log.Info("starting healthz server", "addr", s.healthzAddr)
		if err := s.Healthz.Start(ctx, s.healthzAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting healthz server", "err", err)
			metrics.RecordErrorDetails("error starting healthz server", err)
		}
	}()

	go func() {
		log.Info("starting metrics server", "addr", s.metricsAddr)
		if err := s.Metrics.Start(ctx, s.metricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting metrics server", "err", err)
			metrics.RecordErrorDetails("error starting metrics server", err)
		}
	}()

	log.Info("service started")
}

// Shutdown stops both servers.
func (s *Service) Shutdown() {
	log.Info("service shutting down")

	_ = s.Healthz.Shutdown()
	log.Info("healthz stopped")

	_ = s.Metrics.Shutdown()
	log.Info("metrics stopped")

	log.Info("service stopped")
}
