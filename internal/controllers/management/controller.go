// Package management serves the token-authenticated administration API:
// service status, configuration inspection and storage backend changes.
package management

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/chrissnell/aeroaqua/internal/irradiance"
	"github.com/chrissnell/aeroaqua/internal/log"
	"github.com/chrissnell/aeroaqua/internal/storage"
	"github.com/chrissnell/aeroaqua/pkg/config"
)

const sessionCookie = "aa_session"

// StorageConfigWriter is implemented by configuration providers that can
// change storage backends
type StorageConfigWriter interface {
	SetStorageBackend(storageType string, cfg any) error
	DisableStorageBackend(storageType string) error
}

// TokenStore is implemented by configuration providers that can persist a
// generated management token
type TokenStore interface {
	SetManagementToken(token string) error
}

// Options are the collaborators the management API is built from
type Options struct {
	Provider config.ConfigProvider
	Config   config.ManagementData
	Model    irradiance.LoadResult
	Health   *storage.HealthManager
}

// Controller represents the management API controller
type Controller struct {
	ctx              context.Context
	wg               *sync.WaitGroup
	configProvider   config.ConfigProvider
	managementConfig config.ManagementData
	model            irradiance.LoadResult
	health           *storage.HealthManager
	started          time.Time
	Server           http.Server
	handlers         *Handlers
}

// NewController creates a new management API controller
func NewController(ctx context.Context, wg *sync.WaitGroup, opts Options) (*Controller, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("management API requires a config provider")
	}

	ctrl := &Controller{
		ctx:              ctx,
		wg:               wg,
		configProvider:   opts.Provider,
		managementConfig: opts.Config,
		model:            opts.Model,
		health:           opts.Health,
		started:          time.Now(),
	}

	if ctrl.managementConfig.Port == 0 {
		log.Infof("management.port not specified; defaulting to %d", config.DefaultManagementPort)
		ctrl.managementConfig.Port = config.DefaultManagementPort
	}
	if ctrl.managementConfig.ListenAddr == "" {
		log.Info("management.listen-addr not provided; defaulting to 127.0.0.1 (localhost only)")
		ctrl.managementConfig.ListenAddr = "127.0.0.1"
	}

	if ctrl.managementConfig.AuthToken == "" {
		ctrl.managementConfig.AuthToken = generateAuthToken()

		persisted := false
		if ts, ok := opts.Provider.(TokenStore); ok {
			if err := ts.SetManagementToken(ctrl.managementConfig.AuthToken); err != nil {
				log.Errorf("failed to save management token: %v", err)
			} else {
				persisted = true
			}
		}

		log.Info("═══════════════════════════════════════════════════════════════")
		log.Info("        NEW MANAGEMENT API ACCESS TOKEN GENERATED             ")
		log.Info("═══════════════════════════════════════════════════════════════")
		log.Infof("   Token: %s", ctrl.managementConfig.AuthToken)
		if persisted {
			log.Info("   *** SAVE THIS TOKEN - IT WILL NOT CHANGE ON RESTART ***")
		} else {
			log.Info("   This token changes on every restart; set management.auth-token to pin it")
		}
		log.Info("═══════════════════════════════════════════════════════════════")
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", ctrl.managementConfig.ListenAddr, ctrl.managementConfig.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the management API server
func (c *Controller) StartController() error {
	log.Infof("starting management API on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		var err error
		if c.managementConfig.Cert != "" && c.managementConfig.Key != "" {
			err = c.Server.ListenAndServeTLS(c.managementConfig.Cert, c.managementConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			log.Errorf("management API server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("shutting down the management API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.loggingMiddleware)
	router.Use(c.corsMiddleware)

	router.HandleFunc("/login", c.handlers.Login).Methods(http.MethodPost)
	router.HandleFunc("/logout", c.handlers.Logout).Methods(http.MethodPost)
	router.HandleFunc("/auth/status", c.handlers.GetAuthStatus).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(c.authMiddleware)

	api.HandleFunc("/status", c.handlers.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/system/info", c.handlers.GetSystemInfo).Methods(http.MethodGet)
	api.HandleFunc("/config", c.handlers.GetConfig).Methods(http.MethodGet)
	api.HandleFunc("/config/validate", c.handlers.ValidateConfig).Methods(http.MethodGet)

	api.HandleFunc("/config/storage", c.handlers.GetStorageConfigs).Methods(http.MethodGet)
	api.HandleFunc("/config/storage/{type}", c.handlers.PutStorageConfig).Methods(http.MethodPut)
	api.HandleFunc("/config/storage/{type}", c.handlers.DeleteStorageConfig).Methods(http.MethodDelete)

	api.HandleFunc("/health/storage", c.handlers.GetStorageHealthStatus).Methods(http.MethodGet)
	api.HandleFunc("/health/storage/{type}", c.handlers.GetSingleStorageHealth).Methods(http.MethodGet)

	return router
}

// loggingMiddleware logs every request
func (c *Controller) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Infof("management: %s %s %s %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

// corsMiddleware adds CORS headers
func (c *Controller) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates the bearer token or session cookie
func (c *Controller) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		log.Debugf("management auth failed for %s", r.URL.Path)
		c.handlers.sendError(w, http.StatusUnauthorized, "Authentication required", nil)
	})
}

func (c *Controller) authenticated(r *http.Request) bool {
	token := c.managementConfig.AuthToken

	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && tokenMatches(bearer, token) {
		return true
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil && tokenMatches(cookie.Value, token) {
		return true
	}
	return false
}
