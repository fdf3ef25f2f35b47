package storage

import (
	"maps"
	"sync"
	"time"
)

// Health states
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthData is the last observed state of one backend
type HealthData struct {
	LastCheck time.Time `json:"last_check" msgpack:"last_check"`
	Status    string    `json:"status" msgpack:"status"`
	Message   string    `json:"message" msgpack:"message"`
	Error     string    `json:"error,omitempty" msgpack:"error,omitempty"`
}

// HealthManager keeps the latest health of each backend in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]HealthData
}

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		health: make(map[string]HealthData),
	}
}

// UpdateHealth records the health of a backend
func (hm *HealthManager) UpdateHealth(storageType string, health *HealthData) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.health[storageType] = *health
}

// GetHealth retrieves the health status for a specific backend
func (hm *HealthManager) GetHealth(storageType string) (HealthData, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	h, ok := hm.health[storageType]
	return h, ok
}

// GetAllHealth returns a copy of every backend's health
func (hm *HealthManager) GetAllHealth() map[string]HealthData {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	return maps.Clone(hm.health)
}

// IsHealthy reports whether a backend was healthy within maxAge
func (hm *HealthManager) IsHealthy(storageType string, maxAge time.Duration) bool {
	h, ok := hm.GetHealth(storageType)
	if !ok || time.Since(h.LastCheck) > maxAge {
		return false
	}
	return h.Status == StatusHealthy
}

// AllHealthy reports whether every known backend is healthy within maxAge
func (hm *HealthManager) AllHealthy(maxAge time.Duration) bool {
	for name := range hm.GetAllHealth() {
		if !hm.IsHealthy(name, maxAge) {
			return false
		}
	}
	return true
}
