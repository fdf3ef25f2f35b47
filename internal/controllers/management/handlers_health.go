package management

import (
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/chrissnell/aeroaqua/internal/storage"
)

// staleAfter is how old a health check may be before it stops counting
const staleAfter = 5 * time.Minute

// StorageHealthStatus is the health of one storage engine with staleness
type StorageHealthStatus struct {
	StorageType   string              `json:"storage_type"`
	Health        *storage.HealthData `json:"health,omitempty"`
	AgeMinutes    *int                `json:"age_minutes"`
	IsStale       bool                `json:"is_stale"`
	OverallStatus string              `json:"overall_status"`
}

func healthStatus(name string, health *storage.HealthData, now time.Time) StorageHealthStatus {
	status := StorageHealthStatus{
		StorageType:   name,
		Health:        health,
		IsStale:       true,
		OverallStatus: "unknown",
	}
	if health == nil {
		return status
	}

	if !health.LastCheck.IsZero() {
		age := now.Sub(health.LastCheck)
		minutes := int(age.Minutes())
		status.AgeMinutes = &minutes
		status.IsStale = age > staleAfter
	}

	switch {
	case health.Status == "":
	case health.Status == storage.StatusHealthy && status.IsStale:
		status.OverallStatus = "stale"
	default:
		status.OverallStatus = health.Status
	}
	return status
}

// GetStorageHealthStatus returns the health status of all storage backends
func (h *Handlers) GetStorageHealthStatus(w http.ResponseWriter, r *http.Request) {
	if h.controller.health == nil {
		h.sendError(w, http.StatusServiceUnavailable, "Storage health is not monitored", nil)
		return
	}

	now := time.Now()
	all := h.controller.health.GetAllHealth()

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make([]StorageHealthStatus, 0, len(names))
	for _, name := range names {
		hd := all[name]
		statuses = append(statuses, healthStatus(name, &hd, now))
	}

	h.sendJSON(w, map[string]any{
		"storage_health": statuses,
		"timestamp":      now.Unix(),
	})
}

// GetSingleStorageHealth returns the health status of a specific storage backend
func (h *Handlers) GetSingleStorageHealth(w http.ResponseWriter, r *http.Request) {
	if h.controller.health == nil {
		h.sendError(w, http.StatusServiceUnavailable, "Storage health is not monitored", nil)
		return
	}

	storageType := mux.Vars(r)["type"]
	health, ok := h.controller.health.GetHealth(storageType)
	if !ok {
		h.sendError(w, http.StatusNotFound, "No health data for storage type "+storageType, nil)
		return
	}

	now := time.Now()
	h.sendJSON(w, map[string]any{
		"storage_health": healthStatus(storageType, &health, now),
		"timestamp":      now.Unix(),
	})
}
