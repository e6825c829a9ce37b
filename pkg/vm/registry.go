package vm

import (
	"slices"
	"sync"

	"github.com/sasha-s/go-deadlock"
)

// LoaderRegistry tracks the live user-defined loaders in registration
// order and cooperates with the collector to unload unreachable ones. The
// bootstrap loader is never registered.
type LoaderRegistry struct {
	vm        *VM
	collector Collector

	unloadingOnce sync.Once
	unloading     bool

	mu      deadlock.Mutex
	loaders []*ClassLoader

	// passMu serializes unloading passes.
	passMu sync.Mutex
}

func newLoaderRegistry(vm *VM, collector Collector) *LoaderRegistry {
	return &LoaderRegistry{vm: vm, collector: collector}
}

// SupportsUnloading reports whether the collector can unload classes. The
// collector is asked once.
func (r *LoaderRegistry) SupportsUnloading() bool {
	r.unloadingOnce.Do(func() {
		r.unloading = r.collector != nil && r.collector.SupportsClassUnloading()
	})
	return r.unloading
}

// FindByObject returns the loader whose back-reference is obj, or nil.
func (r *LoaderRegistry) FindByObject(obj *JObject) *ClassLoader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(obj)
}

func (r *LoaderRegistry) findLocked(obj *JObject) *ClassLoader {
	for _, cl := range r.loaders {
		if cl.Object() == obj {
			return cl
		}
	}
	return nil
}

// LookupOrCreate returns the loader for obj, registering a new one on
// first sight.
func (r *LoaderRegistry) LookupOrCreate(obj *JObject) *ClassLoader {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cl := r.findLocked(obj); cl != nil {
		return cl
	}
	cl := newClassLoader(r.vm, obj, userDelegate{})
	r.loaders = append(r.loaders, cl)
	log.Infof("registered %s for %s", cl, obj.ClassName)
	return cl
}

// Loaders returns the registered loaders in registration order.
func (r *LoaderRegistry) Loaders() []*ClassLoader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.loaders)
}

// Len returns the number of registered loaders.
func (r *LoaderRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loaders)
}

// ClearMarkBits clears the mark of every loader and of every class it
// defined, including the bootstrap loader's classes and the primitive
// classes. Called at the start of a collection cycle.
func (r *LoaderRegistry) ClearMarkBits() {
	for _, c := range r.vm.primitives {
		c.marked.Store(false)
	}
	r.vm.bootstrap.clearMarks()
	for _, cl := range r.Loaders() {
		cl.clearMarks()
	}
}

func (cl *ClassLoader) clearMarks() {
	cl.marked.Store(false)
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.loaded.Range(func(_ string, c *Class) bool {
		c.marked.Store(false)
		return true
	})
}

// EnumerateRoots reports every loader back-reference to v. Loader objects
// are weak roots when the collector supports class unloading and strong
// roots otherwise. A dead weak root clears the back-reference; surviving
// loaders are marked.
func (r *LoaderRegistry) EnumerateRoots(v RootVisitor) {
	weak := r.SupportsUnloading()
	for _, cl := range r.Loaders() {
		obj := cl.Object()
		if obj == nil {
			continue
		}
		if !weak {
			v.VisitRoot(obj)
			cl.marked.Store(true)
			continue
		}
		if v.VisitWeakRoot(obj) {
			cl.marked.Store(true)
		} else {
			cl.object.CompareAndSwap(obj, nil)
		}
	}
}

// StartUnloading unloads every loader whose object is gone and which was
// not marked in this cycle, newest first. Each loader is notified, removed
// from the registry and destroyed. It returns the unloaded loaders in the
// order they were processed.
func (r *LoaderRegistry) StartUnloading() []*ClassLoader {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	supports := r.SupportsUnloading()
	var candidates []*ClassLoader
	for _, cl := range r.Loaders() {
		if cl.Object() == nil && (!supports || !cl.IsMarked()) {
			candidates = append(candidates, cl)
		}
	}
	slices.Reverse(candidates)

	for _, cl := range candidates {
		cl.NotifyUnloading()
		r.remove(cl)
		cl.destroy()
	}
	if len(candidates) > 0 {
		log.Infof("unloaded %d class loaders", len(candidates))
	}
	return candidates
}

func (r *LoaderRegistry) remove(cl *ClassLoader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := slices.Index(r.loaders, cl); i >= 0 {
		r.loaders = slices.Delete(r.loaders, i, i+1)
	}
}

// Teardown destroys every registered loader, newest first.
func (r *LoaderRegistry) Teardown() {
	r.mu.Lock()
	loaders := r.loaders
	r.loaders = nil
	r.mu.Unlock()

	for i := len(loaders) - 1; i >= 0; i-- {
		loaders[i].destroy()
	}
}
