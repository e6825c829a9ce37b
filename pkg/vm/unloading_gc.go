package vm

import (
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// UnloadingGC: periodic class unloading
// ---------------------------------------------------------------------------

// UnloadStats holds statistics from a single unloading sweep.
type UnloadStats struct {
	Loaders       int // registered before the sweep
	Unloaded      int
	Classes       int // classes defined across all loaders after the sweep
	SweepDuration time.Duration
	Timestamp     time.Time
}

// UnloadingGC periodically runs a ReachabilityCollector cycle against the
// VM's loader registry, unloading loaders whose objects are no longer
// retained.
type UnloadingGC struct {
	vm        *VM
	collector *ReachabilityCollector
	interval  time.Duration
	enabled   atomic.Bool
	stop      chan struct{}
	stopped   chan struct{}
	mu        sync.Mutex // protects start/stop lifecycle

	sweepCount atomic.Uint64
	lastStats  atomic.Pointer[UnloadStats]
}

// DefaultSweepInterval is used when NewUnloadingGC is given a non-positive
// interval.
const DefaultSweepInterval = 30 * time.Second

// NewUnloadingGC creates a driver for vm. collector must be the one the VM
// was created with.
func NewUnloadingGC(vm *VM, collector *ReachabilityCollector, interval time.Duration) *UnloadingGC {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	gc := &UnloadingGC{
		vm:        vm,
		collector: collector,
		interval:  interval,
	}
	gc.enabled.Store(true)
	return gc
}

// Start begins the periodic sweep goroutine. Calling Start on a running
// driver does nothing.
func (gc *UnloadingGC) Start() {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	if gc.stop != nil {
		return
	}
	gc.stop = make(chan struct{})
	gc.stopped = make(chan struct{})
	go gc.loop(gc.stop, gc.stopped)
}

// Stop halts the sweep goroutine and waits for it to exit.
func (gc *UnloadingGC) Stop() {
	gc.mu.Lock()
	stopCh := gc.stop
	stoppedCh := gc.stopped
	gc.stop = nil
	gc.stopped = nil
	gc.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-stoppedCh
	}
}

// SetEnabled enables or disables sweeping without stopping the goroutine.
func (gc *UnloadingGC) SetEnabled(enabled bool) {
	gc.enabled.Store(enabled)
}

// SweepCount returns the number of sweeps performed.
func (gc *UnloadingGC) SweepCount() uint64 {
	return gc.sweepCount.Load()
}

// LastStats returns the most recent sweep's statistics, or nil.
func (gc *UnloadingGC) LastStats() *UnloadStats {
	return gc.lastStats.Load()
}

// SweepNow performs an immediate sweep.
func (gc *UnloadingGC) SweepNow() *UnloadStats {
	return gc.sweep()
}

func (gc *UnloadingGC) loop(stopCh <-chan struct{}, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if gc.enabled.Load() {
				gc.sweep()
			}
		}
	}
}

func (gc *UnloadingGC) sweep() *UnloadStats {
	start := time.Now()
	stats := &UnloadStats{
		Timestamp: start,
		Loaders:   gc.vm.registry.Len(),
	}
	stats.Unloaded = len(gc.collector.Collect(gc.vm.registry))
	stats.Classes = gc.vm.ClassCount()
	stats.SweepDuration = time.Since(start)

	gc.sweepCount.Add(1)
	gc.lastStats.Store(stats)
	if stats.Unloaded > 0 {
		log.Infof("unloading sweep: %d of %d loaders unloaded in %s", stats.Unloaded, stats.Loaders, stats.SweepDuration)
	}
	return stats
}
