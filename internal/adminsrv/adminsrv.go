// Package adminsrv serves a small read-only operator status surface:
// registry contents, a healthz probe, and Prometheus metrics. This is
// NOT the request-ingest path - per §1's Non-goals, "not an HTTP
// service" describes scan ingest, which stays queue-only; this is
// ambient observability only.
package adminsrv

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/scanforge/filescand/docs"
	"github.com/scanforge/filescand/internal/metrics"
	"github.com/scanforge/filescand/internal/registry"
	"github.com/scanforge/filescand/pkg/log"
)

// Server wraps the admin HTTP surface's router and listener.
type Server struct {
	httpServer *http.Server
}

// New builds a Server bound to addr, exposing /healthz, /metrics,
// /registry, and (in dev) /swagger/.
func New(addr string, reg *registry.Registry, m *metrics.Registry, devSwagger bool) *Server {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	router.HandleFunc("/registry", registryHandler(reg)).Methods(http.MethodGet)

	if m != nil {
		router.Handle("/metrics", promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	if devSwagger {
		router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
			httpSwagger.URL("http://" + addr + "/swagger/doc.json"))).Methods(http.MethodGet)
	}

	logged := handlers.CombinedLoggingHandler(log.InfoWriter, router)

	return &Server{httpServer: &http.Server{Addr: addr, Handler: logged}}
}

// Serve starts the listener; blocks until Shutdown is called or the
// server fails to bind.
func (s *Server) Serve() error {
	log.Infof("adminsrv: listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, honoring ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthzHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Always returns 200 while the worker process is running.
//	@Tags			ops
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/healthz [get]
func healthzHandler(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// registryHandler godoc
//
//	@Summary		Registered scanner names
//	@Description	Lists every scanner name currently registered on this worker.
//	@Tags			ops
//	@Produce		json
//	@Success		200	{object}	map[string][]string
//	@Router			/registry [get]
func registryHandler(reg *registry.Registry) http.HandlerFunc {
	return func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		json.NewEncoder(rw).Encode(map[string][]string{
			"scanners": reg.Names(),
		})
	}
}
