package vm

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/daimatz/jload/pkg/classfile"
	"github.com/daimatz/jload/pkg/native"
	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
)

// delegate is the part of class loading that differs between the bootstrap
// loader and user-defined loaders: how an unresolved name is resolved.
type delegate interface {
	doLoadClass(t *Thread, cl *ClassLoader, name string) (*Class, error)
}

// ClassLoader manages the class tables of one loader and runs the loading
// protocol against them.
type ClassLoader struct {
	ID uuid.UUID

	vm       *VM
	delegate delegate
	object   atomic.Pointer[JObject]
	marked   atomic.Bool

	mu        deadlock.Mutex
	loaded    *ClassTable // classes this loader defined
	initiated *ClassTable // classes this loader was asked for and returned
	pending   *ClassTable // defined, awaiting mirror registration
	loading   map[string]*loadingRecord
	libraries []*native.Library
	destroyed bool
}

func newClassLoader(vm *VM, obj *JObject, d delegate) *ClassLoader {
	cl := &ClassLoader{
		ID:        uuid.New(),
		vm:        vm,
		delegate:  d,
		loaded:    newClassTable(),
		initiated: newClassTable(),
		pending:   newClassTable(),
		loading:   make(map[string]*loadingRecord),
	}
	if obj != nil {
		cl.object.Store(obj)
	}
	return cl
}

// IsBootstrap reports whether cl is the VM's bootstrap loader.
func (cl *ClassLoader) IsBootstrap() bool {
	_, ok := cl.delegate.(*bootstrapDelegate)
	return ok
}

// Object returns the managed loader object, or nil once it has been
// collected. The bootstrap loader has no object.
func (cl *ClassLoader) Object() *JObject {
	return cl.object.Load()
}

// IsMarked reports whether the loader was found reachable in the current
// collection cycle.
func (cl *ClassLoader) IsMarked() bool {
	return cl.marked.Load()
}

// VM returns the owning VM.
func (cl *ClassLoader) VM() *VM {
	return cl.vm
}

func (cl *ClassLoader) String() string {
	if cl.IsBootstrap() {
		return "bootstrap"
	}
	return "loader-" + cl.ID.String()[:8]
}

// lock acquires the loader lock on behalf of t. Suspension stays disabled
// until the matching unlock.
func (cl *ClassLoader) lock(t *Thread) {
	t.DisableSuspend()
	cl.mu.Lock()
}

func (cl *ClassLoader) unlock(t *Thread) {
	cl.mu.Unlock()
	t.EnableSuspend()
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

// LookupLoaded returns the class this loader defined under name, or nil.
func (cl *ClassLoader) LookupLoaded(name string) *Class {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.loaded.Lookup(name)
}

// LookupInitiated returns the class this loader has returned for name, or nil.
func (cl *ClassLoader) LookupInitiated(name string) *Class {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.initiated.Lookup(name)
}

// RecordInitiated notes that cl returned c for name. The first recording
// wins; later ones are ignored.
func (cl *ClassLoader) RecordInitiated(name string, c *Class) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.initiated.Insert(name, c)
}

// insertLoaded adds c to both the loaded and initiated tables. Must be
// called with the lock held.
func (cl *ClassLoader) insertLoaded(name string, c *Class) error {
	if cl.loaded.Lookup(name) != nil {
		return errAlreadyDefined
	}
	cl.loaded.Insert(name, c)
	cl.initiated.Insert(name, c)
	return nil
}

// LoadedClasses returns the classes this loader defined, sorted by name.
func (cl *ClassLoader) LoadedClasses() []*Class {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	names := cl.loaded.Names()
	classes := make([]*Class, len(names))
	for i, name := range names {
		classes[i] = cl.loaded.Lookup(name)
	}
	return classes
}

func (cl *ClassLoader) checkAlive() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.destroyed {
		return newException(InternalError, "%s has been unloaded", cl)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// LoadClass returns the class cl resolves name to, loading it if necessary.
// On success the class is recorded as initiated by cl.
func (cl *ClassLoader) LoadClass(t *Thread, name string) (*Class, error) {
	if err := cl.checkAlive(); err != nil {
		return nil, err
	}
	if c := cl.LookupInitiated(name); c != nil {
		return c, nil
	}
	if isArrayName(name) {
		return cl.loadArrayClass(t, name)
	}

	c, err := cl.startLoading(t, name)
	if err != nil {
		return nil, err
	}
	if c == nil {
		if c, err = cl.delegate.doLoadClass(t, cl, name); err != nil {
			return nil, err
		}
	}
	cl.RecordInitiated(name, c)
	return c, nil
}

// DefineClass defines a class from a class file image with cl as its
// defining loader. When name is empty it is taken from the image.
func (cl *ClassLoader) DefineClass(t *Thread, name string, data []byte) (*Class, error) {
	if err := cl.checkAlive(); err != nil {
		return nil, err
	}

	var cf *classfile.ClassFile
	if name == "" {
		parsed, err := cl.vm.parser.Parse(data)
		if err != nil {
			return nil, wrapException(ClassFormatError, err, "%v", err)
		}
		if name, err = parsed.ClassName(); err != nil {
			return nil, wrapException(ClassFormatError, err, "%v", err)
		}
		cf = parsed
	}
	if isArrayName(name) {
		return nil, newException(NoClassDefFoundError, "%s: array classes cannot be defined from bytes", name)
	}

	return cl.define(t, name, false, func() (*Class, error) {
		return cl.linkClass(t, name, data, cf)
	})
}

// define runs build with t as the definer of name. If the name turns out to
// be loaded already, the existing class is returned when duplicateOK is
// set and a LinkageError otherwise.
func (cl *ClassLoader) define(t *Thread, name string, duplicateOK bool, build func() (*Class, error)) (*Class, error) {
	cl.lock(t)
	existing, err := cl.claimDefiner(t, name)
	cl.unlock(t)
	if errors.Is(err, errAlreadyDefined) {
		if duplicateOK {
			return existing, nil
		}
		return nil, newException(LinkageError, "%s: attempted duplicate class definition for %s", cl, name)
	}
	if err != nil {
		return nil, err
	}

	c, err := build()
	if err != nil {
		cl.failure(t, name)
		return nil, err
	}
	log.Debugf("%s: defined %s", cl, name)
	return c, nil
}

// linkClass turns a class file image into a prepared class and publishes
// it. t must be the definer of name.
func (cl *ClassLoader) linkClass(t *Thread, name string, data []byte, cf *classfile.ClassFile) (*Class, error) {
	if err := cl.vm.reserveClass(); err != nil {
		return nil, err
	}
	c := newClass(name, cl)
	published := false
	defer func() {
		if !published {
			c.setState(StateError)
			cl.vm.releaseClasses(1)
		}
	}()

	if cf == nil {
		var err error
		if cf, err = cl.vm.parser.Parse(data); err != nil {
			return nil, asLinkError(ClassFormatError, name, err)
		}
	}
	actual, err := cf.ClassName()
	if err != nil {
		return nil, asLinkError(ClassFormatError, name, err)
	}
	if actual != name {
		return nil, newException(NoClassDefFoundError, "%s (wrong name: %s)", name, actual)
	}
	c.File = cf
	c.setState(StateLoaded)

	if err := cl.resolveAncestors(t, c); err != nil {
		return nil, err
	}

	if cl.vm.verify {
		if err := cl.vm.verifier.Verify(c); err != nil {
			return nil, asLinkError(VerifyError, name, err)
		}
		c.setState(StateVerified)
	}
	if err := cl.vm.preparer.Prepare(c); err != nil {
		return nil, asLinkError(LinkageError, name, err)
	}
	c.setState(StatePrepared)

	if _, err := cl.publish(t, c); err != nil {
		return nil, err
	}
	published = true
	return c, nil
}

// resolveAncestors loads the superclass and interfaces of c through cl.
func (cl *ClassLoader) resolveAncestors(t *Thread, c *Class) error {
	if c.File.SuperClass != 0 {
		superName := c.File.SuperClassName()
		if superName == "" {
			return newException(ClassFormatError, "%s: invalid super_class index %d", c.Name, c.File.SuperClass)
		}
		super, err := cl.LoadClass(t, superName)
		if err != nil {
			return err
		}
		c.Super = super
	}

	names, err := c.File.InterfaceNames()
	if err != nil {
		return asLinkError(ClassFormatError, c.Name, err)
	}
	for _, ifaceName := range names {
		iface, err := cl.LoadClass(t, ifaceName)
		if err != nil {
			return err
		}
		c.Interfaces = append(c.Interfaces, iface)
	}
	return nil
}

// publish makes c visible in the loaded table and retires its loading
// record. For user loaders the mirror is registered first, with c parked in
// the pending table and no lock held during the managed call.
func (cl *ClassLoader) publish(t *Thread, c *Class) (*Class, error) {
	if !cl.IsBootstrap() {
		cl.lock(t)
		cl.pending.Insert(c.Name, c)
		cl.unlock(t)

		mirror, err := cl.vm.runtime.RegisterClass(t, cl, c)

		cl.lock(t)
		cl.pending.Remove(c.Name)
		cl.unlock(t)
		if err != nil {
			if _, ok := asJavaException(err); ok {
				return nil, err
			}
			return nil, wrapException(InternalError, err, "registering %s: %v", c.Name, err)
		}
		c.Mirror = mirror
	}

	cl.lock(t)
	defer cl.unlock(t)
	if err := cl.insertLoaded(c.Name, c); err != nil {
		return nil, newException(LinkageError, "%s: attempted duplicate class definition for %s", cl, c.Name)
	}
	cl.success(c.Name)
	return c, nil
}

// asLinkError converts a collaborator error into the named managed
// exception. Managed exceptions pass through unchanged.
func asLinkError(className, name string, err error) error {
	if _, ok := asJavaException(err); ok {
		return err
	}
	return wrapException(className, err, "%s: %v", name, err)
}

// ---------------------------------------------------------------------------
// Native libraries and teardown
// ---------------------------------------------------------------------------

// LoadLibrary binds the named native library to cl. Loading the same
// library twice is a no-op; a library held by another loader is refused.
func (cl *ClassLoader) LoadLibrary(name string) error {
	if err := cl.checkAlive(); err != nil {
		return err
	}
	lib, err := cl.vm.natives.Open(name, cl.ID)
	if err != nil {
		return wrapException(UnsatisfiedLinkError, err, "%v", err)
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	for _, held := range cl.libraries {
		if held == lib {
			return lib.Close()
		}
	}
	cl.libraries = append(cl.libraries, lib)
	log.Infof("%s: loaded native library %s", cl, lib.Path)
	return nil
}

// Libraries returns the native libraries held by cl.
func (cl *ClassLoader) Libraries() []*native.Library {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return append([]*native.Library(nil), cl.libraries...)
}

// NotifyUnloading informs the embedder that cl is about to be unloaded.
func (cl *ClassLoader) NotifyUnloading() {
	log.Infof("unloading %s", cl.describe())
	if hook := cl.vm.onUnloading; hook != nil {
		hook(cl)
	}
}

// destroy releases everything cl owns. Subsequent loads fail.
func (cl *ClassLoader) destroy() {
	cl.mu.Lock()
	if cl.destroyed {
		cl.mu.Unlock()
		return
	}
	libs := cl.libraries
	cl.libraries = nil
	n := cl.loaded.Len()
	cl.loaded.clear()
	cl.initiated.clear()
	cl.pending.clear()
	for name, rec := range cl.loading {
		rec.cond.Broadcast()
		delete(cl.loading, name)
	}
	cl.destroyed = true
	cl.object.Store(nil)
	cl.mu.Unlock()

	for _, lib := range libs {
		if err := lib.Close(); err != nil {
			log.Warningf("%s: closing %s: %s", cl, lib.Name, err)
		}
	}
	cl.vm.releaseClasses(n)
}

func (cl *ClassLoader) describe() string {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return fmt.Sprintf("%s loaded=%d initiated=%d loading=%d pending=%d",
		cl, cl.loaded.Len(), cl.initiated.Len(), len(cl.loading), cl.pending.Len())
}
