// Package native manages native library handles on behalf of class loaders.
// Symbol binding is not done here; a Library only records which file backs
// a name and which class loader holds it.
package native

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jload.native")

var (
	// ErrNotFound is returned when no search path entry holds the library.
	ErrNotFound = errors.New("native: library not found")
	// ErrLoadedByOther is returned when a library is already held by a
	// different class loader.
	ErrLoadedByOther = errors.New("native: library already loaded in another class loader")
)

// Library is an open native library handle.
type Library struct {
	Name  string
	Path  string
	Owner uuid.UUID

	loader *Loader
	refs   int
}

// Close releases one reference; the handle is dropped with the last one.
func (l *Library) Close() error {
	return l.loader.release(l)
}

// Loader resolves library names against search paths and tracks which
// class loader owns each library.
type Loader struct {
	SearchPath []string

	mu   sync.Mutex
	open map[string]*Library // by resolved path
}

// NewLoader creates a Loader probing the given directories in order.
func NewLoader(searchPath ...string) *Loader {
	return &Loader{
		SearchPath: searchPath,
		open:       make(map[string]*Library),
	}
}

// MapLibraryName maps a short library name to a platform file name, the way
// System.mapLibraryName does.
func MapLibraryName(name string) string {
	switch runtime.GOOS {
	case "windows":
		return name + ".dll"
	case "darwin":
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}

func (ld *Loader) resolve(name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return name, nil
	}
	file := MapLibraryName(name)
	for _, dir := range ld.SearchPath {
		path := filepath.Join(dir, file)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotFound)
}

// Open acquires the library for owner. Opening a library the same owner
// already holds returns the existing handle with its reference count bumped.
func (ld *Loader) Open(name string, owner uuid.UUID) (*Library, error) {
	path, err := ld.resolve(name)
	if err != nil {
		return nil, err
	}

	ld.mu.Lock()
	defer ld.mu.Unlock()

	if lib, ok := ld.open[path]; ok {
		if lib.Owner != owner {
			return nil, fmt.Errorf("%s (held by %s): %w", path, lib.Owner, ErrLoadedByOther)
		}
		lib.refs++
		return lib, nil
	}

	lib := &Library{Name: name, Path: path, Owner: owner, loader: ld, refs: 1}
	ld.open[path] = lib
	log.Debugf("opened %s for %s", path, owner)
	return lib, nil
}

func (ld *Loader) release(lib *Library) error {
	ld.mu.Lock()
	defer ld.mu.Unlock()

	if ld.open[lib.Path] != lib || lib.refs == 0 {
		return fmt.Errorf("native: %s is not open", lib.Path)
	}
	lib.refs--
	if lib.refs == 0 {
		delete(ld.open, lib.Path)
		log.Debugf("released %s", lib.Path)
	}
	return nil
}

// OpenCount returns the number of distinct open libraries.
func (ld *Loader) OpenCount() int {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	return len(ld.open)
}
