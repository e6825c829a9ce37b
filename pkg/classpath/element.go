// Package classpath locates raw class file bytes on a class path made of
// directories, jar/zip archives and jmod files.
package classpath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jload.classpath")

// ErrNotFound is returned by an Element that does not hold the class.
var ErrNotFound = errors.New("classpath: class not found")

// Element is one entry of a class path.
type Element interface {
	// ReadClass returns the bytes of the class with the given binary name
	// (e.g. "java/lang/Object"), or an error wrapping ErrNotFound.
	ReadClass(name string) ([]byte, error)
	String() string
	Close() error
}

// NewElement opens a class path entry, choosing the element kind from the
// file type: directories, .jmod files, and anything else as a zip archive.
func NewElement(path string) (Element, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("classpath: %w", err)
	}
	if info.IsDir() {
		return &Dir{Root: path}, nil
	}
	if strings.HasSuffix(path, ".jmod") {
		return OpenJmod(path), nil
	}
	return OpenArchive(path), nil
}

// Dir is a class path directory laid out by package.
type Dir struct {
	Root string
}

func (d *Dir) ReadClass(name string) ([]byte, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%s in %s: %w", name, d.Root, ErrNotFound)
	}
	path := filepath.Join(d.Root, filepath.FromSlash(name)+".class")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s in %s: %w", name, d.Root, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("classpath: reading %s: %w", path, err)
	}
	return data, nil
}

// validName reports whether every segment of a binary name is a plain
// path component, so the name cannot leave a directory root.
func validName(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsRune(seg, filepath.Separator) {
			return false
		}
	}
	return true
}

func (d *Dir) String() string { return d.Root }

func (d *Dir) Close() error { return nil }
