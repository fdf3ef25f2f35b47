// Package storage defines the interface shared by prediction result storage backends.
package storage

import (
	"context"
	"sync"

	"github.com/chrissnell/aeroaqua/internal/pipeline"
)

// StorageEngineInterface is implemented by every result storage backend
type StorageEngineInterface interface {
	// StartStorageEngine starts a goroutine that stores results sent on the
	// returned channel until ctx is cancelled.
	StartStorageEngine(context.Context, *sync.WaitGroup) chan<- pipeline.Result

	// StoreResults stores a batch synchronously
	StoreResults(ctx context.Context, results []pipeline.Result) error

	// RecentResults returns up to limit results, newest first
	RecentResults(ctx context.Context, limit int) ([]pipeline.Result, error)

	HealthChecker
	Close() error
}
