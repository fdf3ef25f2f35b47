// Package restserver serves predictions, solar positions and yield grids over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/chrissnell/aeroaqua/internal/irradiance"
	"github.com/chrissnell/aeroaqua/internal/log"
	"github.com/chrissnell/aeroaqua/internal/pipeline"
	"github.com/chrissnell/aeroaqua/internal/storage"
	"github.com/chrissnell/aeroaqua/pkg/config"
)

// ResultStore is the read side of result storage
type ResultStore interface {
	RecentResults(ctx context.Context, limit int) ([]pipeline.Result, error)
}

// Options are the collaborators the REST server is built from
type Options struct {
	Config *config.ConfigData
	Model  irradiance.LoadResult

	// Results receives every prediction served; nil disables storage
	Results chan<- pipeline.Result
	Store   ResultStore
	Health  *storage.HealthManager
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, opts Options) (*Controller, error) {
	if opts.Config == nil || opts.Config.REST == nil {
		return nil, fmt.Errorf("REST server is not configured")
	}
	rc := *opts.Config.REST

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		log.Info("rest.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}
	if rc.Port == 0 {
		log.Infof("rest.port not provided; defaulting to %d", config.DefaultRESTPort)
		rc.Port = config.DefaultRESTPort
	}

	handlers, err := NewHandlers(ctx, opts)
	if err != nil {
		return nil, err
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		handlers:   handlers,
	}
	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = log.HTTPMiddleware(NewRouter(handlers))
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Infof("starting REST server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// NewRouter configures the HTTP router with all endpoints
func NewRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/predict", h.GetPrediction).Methods(http.MethodGet)
	api.HandleFunc("/positions", h.GetPositions).Methods(http.MethodGet)
	api.HandleFunc("/grid", h.GetGrid).Methods(http.MethodGet)
	api.HandleFunc("/coefficients", h.GetCoefficients).Methods(http.MethodGet)
	api.HandleFunc("/results", h.GetResults).Methods(http.MethodGet)

	router.HandleFunc("/healthz", h.GetHealth).Methods(http.MethodGet)

	return router
}

// requestIDMiddleware echoes the caller's X-Request-ID or assigns a new one
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, req)
	})
}
