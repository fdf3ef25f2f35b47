package storage

import (
	"context"
	"sync"
	"time"

	"github.com/chrissnell/aeroaqua/internal/log"
	"github.com/chrissnell/aeroaqua/internal/pipeline"
)

// HealthChecker is implemented by backends that can report their health
type HealthChecker interface {
	CheckHealth(ctx context.Context) *HealthData
}

// StartHealthMonitor checks a backend immediately and then every interval,
// recording the outcome in hm until ctx is cancelled.
func StartHealthMonitor(ctx context.Context, hm *HealthManager, storageType string, checker HealthChecker, interval time.Duration) {
	go func() {
		updateHealth := func() {
			health := checker.CheckHealth(ctx)
			hm.UpdateHealth(storageType, health)
			log.Debugf("updated %s health status: %s", storageType, health.Status)
		}

		updateHealth()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				updateHealth()
			case <-ctx.Done():
				log.Infof("stopping %s health monitor", storageType)
				return
			}
		}
	}()
}

// ProcessResults stores results arriving on resultChan until ctx is cancelled.
// Storage errors are logged and the loop continues.
func ProcessResults(ctx context.Context, wg *sync.WaitGroup, resultChan <-chan pipeline.Result, processor func(context.Context, []pipeline.Result) error, name string) {
	defer wg.Done()

	for {
		select {
		case r := <-resultChan:
			if err := processor(ctx, []pipeline.Result{r}); err != nil {
				log.Errorf("%s result processor error: %v", name, err)
			}
		case <-ctx.Done():
			log.Infof("cancellation request received. Cancelling %s result processor", name)
			return
		}
	}
}

// CreateHealthData creates a health record stamped with the current time
func CreateHealthData(status, message string, err error) *HealthData {
	health := &HealthData{
		LastCheck: time.Now(),
		Status:    status,
		Message:   message,
	}

	if err != nil {
		health.Error = err.Error()
	}

	return health
}
