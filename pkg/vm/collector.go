package vm

import "sync"

// Collector is the garbage collector as seen by the loader registry.
type Collector interface {
	// SupportsClassUnloading reports whether loader objects may be
	// treated as weak roots.
	SupportsClassUnloading() bool
}

// RootVisitor receives loader back-references during root enumeration.
type RootVisitor interface {
	// VisitRoot reports a strong root.
	VisitRoot(obj *JObject)
	// VisitWeakRoot reports a weak root and returns whether obj survives.
	VisitWeakRoot(obj *JObject) bool
}

// ReachabilityCollector is a minimal collector for embedders without a
// tracing heap: an object is alive while it is retained.
type ReachabilityCollector struct {
	unloading bool

	mu       sync.Mutex
	retained map[*JObject]int
}

// NewReachabilityCollector returns a collector. With unloading false,
// loader objects are strong roots and loaders are never unloaded.
func NewReachabilityCollector(unloading bool) *ReachabilityCollector {
	return &ReachabilityCollector{
		unloading: unloading,
		retained:  make(map[*JObject]int),
	}
}

func (c *ReachabilityCollector) SupportsClassUnloading() bool {
	return c.unloading
}

// Retain adds a reference to obj.
func (c *ReachabilityCollector) Retain(obj *JObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retained[obj]++
}

// Release drops a reference added by Retain.
func (c *ReachabilityCollector) Release(obj *JObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retained[obj] <= 1 {
		delete(c.retained, obj)
		return
	}
	c.retained[obj]--
}

func (c *ReachabilityCollector) VisitRoot(obj *JObject) {}

func (c *ReachabilityCollector) VisitWeakRoot(obj *JObject) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retained[obj] > 0
}

// Collect runs one cycle against reg: clear marks, enumerate roots, unload.
// It returns the loaders that were unloaded.
func (c *ReachabilityCollector) Collect(reg *LoaderRegistry) []*ClassLoader {
	reg.ClearMarkBits()
	reg.EnumerateRoots(c)
	return reg.StartUnloading()
}
