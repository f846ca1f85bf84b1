package service

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

// HealthzServer answers /healthz with the state of the last run.
type HealthzServer struct {
	ctx    context.Context
	server *http.Server
	status StatusFunc
}

// StatusFunc reports whether the process is healthy and a short description.
type StatusFunc func() (healthy bool, detail string)

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.Handle)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	server := &http.Server{
		Handler: c.Handler(hdlr),
		Addr:    addr,
	}
	h.server = server
	h.ctx = ctx
	return h.server.ListenAndServe()
}

func (h *HealthzServer) Shutdown() error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(h.ctx)
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	log.Debug("Received health check request", "path", r.URL.Path)
	if h.status != nil {
		if healthy, detail := h.status(); !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(detail)) //nolint:errcheck
			return
		}
	}
	w.Write([]byte("OK")) //nolint:errcheck
}
