// Package vm implements class loading: per-loader class tables, the
// concurrent loading protocol, bootstrap and user-defined delegation, and
// the loader registry that cooperates with the collector to unload
// loaders.
package vm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/daimatz/jload/pkg/classfile"
	"github.com/daimatz/jload/pkg/native"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
)

var log = commonlog.GetLogger("jload.vm")

// VM owns the bootstrap loader, the registry of user-defined loaders and
// the collaborators they share.
type VM struct {
	bootstrap  *ClassLoader
	registry   *LoaderRegistry
	primitives map[string]*Class

	parser   Parser
	verifier Verifier
	preparer Preparer
	verify   bool
	runtime  ManagedRuntime
	natives  *native.Loader

	onUnloading func(*ClassLoader)

	maxClasses int64
	classCount atomic.Int64

	threads sync.Map // goroutine id -> *Thread
}

// New creates a VM. Zero-valued options get defaults.
func New(opts Options) *VM {
	vm := &VM{
		parser:      opts.Parser,
		verifier:    opts.Verifier,
		preparer:    opts.Preparer,
		verify:      !opts.NoVerify,
		runtime:     opts.Runtime,
		natives:     opts.Natives,
		onUnloading: opts.OnUnloading,
		maxClasses:  int64(opts.MaxClasses),
	}
	if vm.parser == nil {
		vm.parser = ParserFunc(classfile.ParseBytes)
	}
	if vm.verifier == nil {
		vm.verifier = StructuralVerifier{}
	}
	if vm.preparer == nil {
		vm.preparer = FieldLayoutPreparer{}
	}
	if vm.runtime == nil {
		vm.runtime = noRuntime{}
	}
	if vm.natives == nil {
		vm.natives = native.NewLoader()
	}
	collector := opts.Collector
	if collector == nil {
		collector = NewReachabilityCollector(false)
	}

	vm.bootstrap = newClassLoader(vm, nil, &bootstrapDelegate{path: opts.BootClassPath})
	vm.registry = newLoaderRegistry(vm, collector)
	vm.primitives = newPrimitiveClasses(vm.bootstrap)
	return vm
}

// Bootstrap returns the bootstrap loader.
func (vm *VM) Bootstrap() *ClassLoader {
	return vm.bootstrap
}

// Registry returns the registry of user-defined loaders.
func (vm *VM) Registry() *LoaderRegistry {
	return vm.registry
}

// Primitive returns the class for a primitive type name such as "int".
func (vm *VM) Primitive(name string) *Class {
	return vm.primitives[name]
}

// LookupLoader maps a managed loader object to its ClassLoader. A nil
// object denotes the bootstrap loader.
func (vm *VM) LookupLoader(obj *JObject) *ClassLoader {
	if obj == nil {
		return vm.bootstrap
	}
	return vm.registry.LookupOrCreate(obj)
}

// LoadClass loads name through the loader for obj.
func (vm *VM) LoadClass(t *Thread, obj *JObject, name string) (*Class, error) {
	return vm.LookupLoader(obj).LoadClass(t, name)
}

// DefineClass defines a class from data with the loader for obj as its
// defining loader.
func (vm *VM) DefineClass(t *Thread, obj *JObject, name string, data []byte) (*Class, error) {
	return vm.LookupLoader(obj).DefineClass(t, name, data)
}

// ClassCount returns the number of classes currently defined across all
// loaders, not counting primitives.
func (vm *VM) ClassCount() int {
	return int(vm.classCount.Load())
}

func (vm *VM) reserveClass() error {
	n := vm.classCount.Add(1)
	if vm.maxClasses > 0 && n > vm.maxClasses {
		vm.classCount.Add(-1)
		return newException(OutOfMemoryError, "class budget of %d exhausted", vm.maxClasses)
	}
	return nil
}

func (vm *VM) releaseClasses(n int) {
	vm.classCount.Add(-int64(n))
}

// Preload loads names through loader concurrently, at most limit at a time
// (no limit when limit <= 0). Each load runs on its own attached thread.
// The returned slice is index-aligned with names.
func (vm *VM) Preload(ctx context.Context, loader *ClassLoader, names []string, limit int) ([]*Class, error) {
	if loader == nil {
		loader = vm.bootstrap
	}
	classes := make([]*Class, len(names))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t := vm.AttachCurrentThread(fmt.Sprintf("preload-%d", i))
			defer vm.DetachCurrentThread()

			c, err := loader.LoadClass(t, name)
			if err != nil {
				return fmt.Errorf("preloading %s: %w", name, err)
			}
			classes[i] = c
			return nil
		})
	}
	return classes, g.Wait()
}

// Shutdown destroys every user-defined loader and then the bootstrap
// loader.
func (vm *VM) Shutdown() error {
	vm.registry.Teardown()
	vm.bootstrap.destroy()
	if n := vm.natives.OpenCount(); n != 0 {
		return fmt.Errorf("vm: %d native libraries still open after shutdown", n)
	}
	return nil
}
