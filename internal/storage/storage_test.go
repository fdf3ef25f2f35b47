package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/aeroaqua/internal/pipeline"
)

type fixedChecker struct {
	status string
}

func (f fixedChecker) CheckHealth(context.Context) *HealthData {
	return CreateHealthData(f.status, "fixed", nil)
}

func TestHealthManager(t *testing.T) {
	hm := NewHealthManager()

	if hm.IsHealthy("sqlite", time.Minute) {
		t.Error("unknown backend reported healthy")
	}
	if !hm.AllHealthy(time.Minute) {
		t.Error("no backends should count as all healthy")
	}

	hm.UpdateHealth("sqlite", CreateHealthData(StatusHealthy, "ok", nil))
	hm.UpdateHealth("timescaledb", CreateHealthData(StatusUnhealthy, "down", errors.New("refused")))

	tests := []struct {
		name     string
		backend  string
		maxAge   time.Duration
		expected bool
	}{
		{name: "healthy", backend: "sqlite", maxAge: time.Minute, expected: true},
		{name: "unhealthy", backend: "timescaledb", maxAge: time.Minute, expected: false},
		{name: "stale", backend: "sqlite", maxAge: -time.Second, expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hm.IsHealthy(tt.backend, tt.maxAge); got != tt.expected {
				t.Errorf("IsHealthy(%s) = %v", tt.backend, got)
			}
		})
	}

	if hm.AllHealthy(time.Minute) {
		t.Error("AllHealthy with one backend down")
	}
	all := hm.GetAllHealth()
	if len(all) != 2 || all["timescaledb"].Error != "refused" {
		t.Errorf("GetAllHealth() = %+v", all)
	}
}

func TestStartHealthMonitor(t *testing.T) {
	hm := NewHealthManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartHealthMonitor(ctx, hm, "sqlite", fixedChecker{status: StatusHealthy}, time.Hour)

	deadline := time.Now().Add(5 * time.Second)
	for !hm.IsHealthy("sqlite", time.Minute) {
		if time.Now().After(deadline) {
			t.Fatal("health monitor never ran its first check")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestProcessResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	var mu sync.Mutex
	var stored []string
	processor := func(_ context.Context, rs []pipeline.Result) error {
		mu.Lock()
		defer mu.Unlock()
		for _, r := range rs {
			stored = append(stored, r.RunID)
		}
		if rs[0].RunID == "bad" {
			return errors.New("rejected")
		}
		return nil
	}

	c := make(chan pipeline.Result)
	wg.Add(1)
	go ProcessResults(ctx, &wg, c, processor, "test")

	// unbuffered sends complete only once the loop has received them, and a
	// processor error must not stop the loop
	c <- pipeline.Result{RunID: "bad"}
	c <- pipeline.Result{RunID: "good"}
	c <- pipeline.Result{RunID: "last"}

	cancel()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(stored) < 2 || stored[0] != "bad" || stored[1] != "good" {
		t.Errorf("stored = %v", stored)
	}
}
