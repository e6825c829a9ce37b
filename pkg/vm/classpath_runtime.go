package vm

import (
	"sync"

	"github.com/daimatz/jload/pkg/classpath"
)

// ClassPathLoaderClass is the class name of loader objects created by
// ClassPathRuntime.
const ClassPathLoaderClass = "jload/ClassPathLoader"

// ClassPathRuntime is a ManagedRuntime whose loader objects behave like a
// URL class loader: loadClass returns an already defined class, then asks
// the parent, then reads the class from the loader's own path and defines
// it.
type ClassPathRuntime struct {
	mu      sync.RWMutex
	loaders map[*JObject]*pathLoader
}

type pathLoader struct {
	parent *JObject // nil: bootstrap
	path   classpath.Path
}

// NewClassPathRuntime returns a runtime with no loaders.
func NewClassPathRuntime() *ClassPathRuntime {
	return &ClassPathRuntime{loaders: make(map[*JObject]*pathLoader)}
}

// NewLoader creates a loader object that delegates to parent (nil for the
// bootstrap loader) before searching path.
func (r *ClassPathRuntime) NewLoader(parent *JObject, path classpath.Path) *JObject {
	obj := NewObject(ClassPathLoaderClass)
	obj.Fields["path"] = path.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[obj] = &pathLoader{parent: parent, path: path}
	return obj
}

func (r *ClassPathRuntime) lookup(obj *JObject) *pathLoader {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaders[obj]
}

func (r *ClassPathRuntime) InvokeLoadClass(t *Thread, loader *ClassLoader, name string) (*Class, error) {
	pl := r.lookup(loader.Object())
	if pl == nil {
		return nil, newException(InternalError, "%s is not a class path loader", loader)
	}

	if c := loader.LookupLoaded(name); c != nil {
		return c, nil
	}

	parent := loader.VM().LookupLoader(pl.parent)
	c, err := parent.LoadClass(t, name)
	if err == nil {
		return c, nil
	}
	if !IsJavaException(err, NoClassDefFoundError) && !IsJavaException(err, ClassNotFoundException) {
		return nil, err
	}

	data, _, rerr := pl.path.ReadClass(name)
	if rerr != nil {
		return nil, wrapException(ClassNotFoundException, rerr, "%s", name)
	}
	c, err = loader.DefineClass(t, name, data)
	if IsJavaException(err, LinkageError) {
		// Lost a race with a concurrent definition through this loader.
		if existing := loader.LookupLoaded(name); existing != nil {
			return existing, nil
		}
	}
	return c, err
}

func (r *ClassPathRuntime) RegisterClass(t *Thread, loader *ClassLoader, c *Class) (*JObject, error) {
	mirror := NewObject("java/lang/Class")
	mirror.Fields["name"] = c.Name
	mirror.Fields["classLoader"] = loader.Object()
	return mirror, nil
}

// Close closes the class paths of every loader created by r.
func (r *ClassPathRuntime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for obj, pl := range r.loaders {
		if err := pl.path.Close(); err != nil && first == nil {
			first = err
		}
		delete(r.loaders, obj)
	}
	return first
}
