package management

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"runtime"
	"time"

	"github.com/gorilla/mux"

	"github.com/chrissnell/aeroaqua/internal/constants"
	"github.com/chrissnell/aeroaqua/pkg/config"
)

// SystemInfo describes the host the service runs on
type SystemInfo struct {
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	Hostname     string `json:"hostname"`
	GoVersion    string `json:"go_version"`
	Timestamp    int64  `json:"timestamp"`
}

// GetStatus reports uptime and the loaded irradiance model
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	c := h.controller

	status := "ok"
	if c.model.Fallback {
		status = "degraded"
	}

	h.sendJSON(w, map[string]any{
		"status":         status,
		"version":        constants.Version,
		"timestamp":      time.Now().Unix(),
		"uptime_seconds": int64(time.Since(c.started).Seconds()),
		"model": map[string]any{
			"path":     c.model.Path,
			"fallback": c.model.Fallback,
			"attempts": len(c.model.Attempts),
		},
		"read_only": c.configProvider.IsReadOnly(),
	})
}

// GetSystemInfo returns host details
func (h *Handlers) GetSystemInfo(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()

	h.sendJSON(w, SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		Hostname:     hostname,
		GoVersion:    runtime.Version(),
		Timestamp:    time.Now().Unix(),
	})
}

// GetConfig returns the stored configuration with secrets redacted
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	configData, err := h.controller.configProvider.LoadConfig()
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to load configuration", err)
		return
	}

	h.sendJSON(w, map[string]any{
		"config":    redactConfig(configData),
		"read_only": h.controller.configProvider.IsReadOnly(),
		"timestamp": time.Now().Unix(),
	})
}

// ValidateConfig reloads the stored configuration and reports whether it is
// usable
func (h *Handlers) ValidateConfig(w http.ResponseWriter, r *http.Request) {
	_, err := h.controller.configProvider.LoadConfig()

	response := map[string]any{
		"valid":     err == nil,
		"timestamp": time.Now().Unix(),
	}
	if err != nil {
		response["error"] = err.Error()
	}
	h.sendJSON(w, response)
}

// GetStorageConfigs lists the enabled storage backends
func (h *Handlers) GetStorageConfigs(w http.ResponseWriter, r *http.Request) {
	s, err := h.controller.configProvider.GetStorageConfig()
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to load storage configuration", err)
		return
	}

	h.sendJSON(w, map[string]any{
		"storage": redactStorage(*s),
	})
}

// PutStorageConfig enables or replaces a storage backend.  Changes apply on
// the next restart.
func (h *Handlers) PutStorageConfig(w http.ResponseWriter, r *http.Request) {
	writer, ok := h.storageWriter(w)
	if !ok {
		return
	}

	storageType := mux.Vars(r)["type"]

	var cfg any
	switch storageType {
	case "sqlite":
		var s config.SQLiteData
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			h.sendError(w, http.StatusBadRequest, "Invalid JSON payload", err)
			return
		}
		if s.Path == "" {
			h.sendError(w, http.StatusBadRequest, "path is required", nil)
			return
		}
		cfg = &s
	case "timescaledb":
		var t config.TimescaleDBData
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			h.sendError(w, http.StatusBadRequest, "Invalid JSON payload", err)
			return
		}
		if t.ConnectionString == "" {
			h.sendError(w, http.StatusBadRequest, "connection_string is required", nil)
			return
		}
		cfg = &t
	default:
		h.sendError(w, http.StatusNotFound, fmt.Sprintf("Unknown storage type %q", storageType), nil)
		return
	}

	if err := writer.SetStorageBackend(storageType, cfg); err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to save storage configuration", err)
		return
	}

	h.sendJSON(w, map[string]any{
		"success":          true,
		"storage_type":     storageType,
		"restart_required": true,
	})
}

// DeleteStorageConfig disables a storage backend
func (h *Handlers) DeleteStorageConfig(w http.ResponseWriter, r *http.Request) {
	writer, ok := h.storageWriter(w)
	if !ok {
		return
	}

	storageType := mux.Vars(r)["type"]
	if err := writer.DisableStorageBackend(storageType); err != nil {
		h.sendError(w, http.StatusNotFound, "Failed to disable storage backend", err)
		return
	}

	h.sendJSON(w, map[string]any{
		"success":          true,
		"storage_type":     storageType,
		"restart_required": true,
	})
}

var errReadOnly = errors.New("configuration provider is read-only")

func (h *Handlers) storageWriter(w http.ResponseWriter) (StorageConfigWriter, bool) {
	p := h.controller.configProvider
	writer, ok := p.(StorageConfigWriter)
	if !ok || p.IsReadOnly() {
		h.sendError(w, http.StatusConflict, "Configuration cannot be modified; use the SQLite config backend", errReadOnly)
		return nil, false
	}
	return writer, true
}

const redacted = "REDACTED"

var dsnPassword = regexp.MustCompile(`(password=)(\S+)`)

// redactConnectionString hides the password of a URL or key=value DSN
func redactConnectionString(s string) string {
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), redacted)
			return u.String()
		}
		return s
	}
	return dsnPassword.ReplaceAllString(s, "${1}"+redacted)
}

func redactStorage(s config.StorageData) config.StorageData {
	if s.TimescaleDB != nil {
		t := *s.TimescaleDB
		t.ConnectionString = redactConnectionString(t.ConnectionString)
		s.TimescaleDB = &t
	}
	return s
}

func redactConfig(c *config.ConfigData) config.ConfigData {
	out := *c
	out.Storage = redactStorage(c.Storage)
	if c.Management != nil {
		m := *c.Management
		if m.AuthToken != "" {
			m.AuthToken = redacted
		}
		out.Management = &m
	}
	return out
}
