package vm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/daimatz/jload/pkg/classfile"
	"github.com/daimatz/jload/pkg/classfile/classfiletest"
	"github.com/daimatz/jload/pkg/classpath"
	"github.com/daimatz/jload/pkg/native"
)

func objectClass() *classfiletest.Builder {
	return classfiletest.New("java/lang/Object").WithSuper("")
}

// writeClasses writes classes into a fresh directory and returns it.
func writeClasses(t *testing.T, classes ...*classfiletest.Builder) string {
	t.Helper()
	dir := t.TempDir()
	for _, b := range classes {
		if _, err := b.WriteFile(dir); err != nil {
			t.Fatalf("writing %s: %v", b.Name, err)
		}
	}
	return dir
}

// openPath opens entries as a class path closed at test cleanup.
func openPath(t *testing.T, entries ...string) classpath.Path {
	t.Helper()
	p, err := classpath.New(entries...)
	if err != nil {
		t.Fatalf("opening class path %v: %v", entries, err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

// newBootVM returns a VM whose boot class path is a directory holding
// java/lang/Object and the given classes.
func newBootVM(t *testing.T, opts Options, classes ...*classfiletest.Builder) *VM {
	t.Helper()
	dir := writeClasses(t, append([]*classfiletest.Builder{objectClass()}, classes...)...)
	opts.BootClassPath = openPath(t, dir)
	return New(opts)
}

// writeLibrary creates an empty native library file for name in dir.
func writeLibrary(t *testing.T, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, native.MapLibraryName(name))
	if err := os.WriteFile(path, []byte{0x7f, 'E', 'L', 'F'}, 0o644); err != nil {
		t.Fatal(err)
	}
}

// countingParser counts parses per class name and can delay or fail them.
type countingParser struct {
	delay time.Duration

	mu     sync.Mutex
	counts map[string]int
	fail   map[string]int // remaining failures per name
}

func newCountingParser() *countingParser {
	return &countingParser{
		counts: make(map[string]int),
		fail:   make(map[string]int),
	}
}

func (p *countingParser) Parse(data []byte) (*classfile.ClassFile, error) {
	cf, err := classfile.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	name, _ := cf.ClassName()

	p.mu.Lock()
	p.counts[name]++
	failing := p.fail[name] > 0
	if failing {
		p.fail[name]--
	}
	p.mu.Unlock()

	time.Sleep(p.delay)
	if failing {
		return nil, errInjected
	}
	return cf, nil
}

func (p *countingParser) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[name]
}

var errInjected = errors.New("injected parse failure")

// fakeRuntime lets tests script the managed side. Unset hooks delegate to
// the bootstrap loader and allocate a plain mirror.
type fakeRuntime struct {
	loadClass func(t *Thread, cl *ClassLoader, name string) (*Class, error)
	register  func(t *Thread, cl *ClassLoader, c *Class) (*JObject, error)
}

func (r *fakeRuntime) InvokeLoadClass(t *Thread, cl *ClassLoader, name string) (*Class, error) {
	if r.loadClass == nil {
		return cl.VM().Bootstrap().LoadClass(t, name)
	}
	return r.loadClass(t, cl, name)
}

func (r *fakeRuntime) RegisterClass(t *Thread, cl *ClassLoader, c *Class) (*JObject, error) {
	if r.register == nil {
		return NewObject("java/lang/Class"), nil
	}
	return r.register(t, cl, c)
}

// assertNoRecords fails if cl has loading records or pending entries left.
func assertNoRecords(t *testing.T, cl *ClassLoader) {
	t.Helper()
	s := cl.snapshot()
	if len(s.Loading) != 0 || len(s.Pending) != 0 {
		t.Errorf("%s: residual state loading=%v pending=%v", cl, s.Loading, s.Pending)
	}
}

func assertException(t *testing.T, err error, className string) {
	t.Helper()
	if err == nil {
		t.Fatalf("got nil error, want %s", className)
	}
	if !IsJavaException(err, className) {
		t.Fatalf("got %v, want %s", err, className)
	}
}

// gatedElement is a class path element that holds every read of name until
// release is closed and then reports it missing. Other names miss at once.
type gatedElement struct {
	name    string
	entered chan struct{}
	release chan struct{}
}

func newGatedElement(name string) *gatedElement {
	return &gatedElement{
		name:    name,
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (e *gatedElement) ReadClass(name string) ([]byte, error) {
	if name == e.name {
		select {
		case e.entered <- struct{}{}:
		default:
		}
		<-e.release
	}
	return nil, fmt.Errorf("%s: %w", name, classpath.ErrNotFound)
}

func (e *gatedElement) String() string { return "gated:" + e.name }

func (e *gatedElement) Close() error { return nil }

// waitUntil polls cond until it holds or a second has passed.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// record returns a copy of the loading record for name, or nil.
func (cl *ClassLoader) record(name string) *loadingRecord {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	rec := cl.loading[name]
	if rec == nil {
		return nil
	}
	return &loadingRecord{
		initiator: rec.initiator,
		definer:   rec.definer,
		waiting:   slices.Clone(rec.waiting),
	}
}
