package classpath

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
)

// jmodMagic is the "JM" prefix of a jmod file; the zip data starts after a
// four byte header.
const jmodMagic = 0x4A4D

// Archive is a jar, zip or jmod class path element. The archive is opened
// and indexed on first use; lookups are safe for concurrent use.
type Archive struct {
	Path string

	jmod   bool
	prefix string

	once   sync.Once
	err    error
	closer io.Closer
	index  map[string]*zip.File
}

// OpenArchive returns a lazily opened jar or zip element.
func OpenArchive(path string) *Archive {
	return &Archive{Path: path}
}

// OpenJmod returns a lazily opened jmod element. Classes live under
// "classes/" inside a jmod.
func OpenJmod(path string) *Archive {
	return &Archive{Path: path, jmod: true, prefix: "classes/"}
}

func (a *Archive) open() error {
	a.once.Do(func() {
		var files []*zip.File
		if a.jmod {
			files, a.err = a.openJmod()
		} else {
			var rc *zip.ReadCloser
			rc, a.err = zip.OpenReader(a.Path)
			if a.err == nil {
				a.closer = rc
				files = rc.File
			}
		}
		if a.err != nil {
			a.err = fmt.Errorf("classpath: opening %s: %w", a.Path, a.err)
			return
		}

		a.index = make(map[string]*zip.File, len(files))
		for _, f := range files {
			if !strings.HasPrefix(f.Name, a.prefix) || !strings.HasSuffix(f.Name, ".class") {
				continue
			}
			name := strings.TrimSuffix(strings.TrimPrefix(f.Name, a.prefix), ".class")
			a.index[name] = f
		}
		log.Debugf("indexed %d classes in %s", len(a.index), a.Path)
	})
	return a.err
}

func (a *Archive) openJmod() ([]*zip.File, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("jmod file too short: %d bytes", len(data))
	}
	if magic := binary.BigEndian.Uint16(data[:2]); magic != jmodMagic {
		return nil, fmt.Errorf("invalid jmod magic number: 0x%X (expected 0x%X)", magic, jmodMagic)
	}
	zipData := data[4:] // skip "JM\x01\x00" header
	zr, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, err
	}
	return zr.File, nil
}

func (a *Archive) ReadClass(name string) ([]byte, error) {
	if err := a.open(); err != nil {
		return nil, err
	}
	f, ok := a.index[name]
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", name, a.Path, ErrNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("classpath: opening %s in %s: %w", f.Name, a.Path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("classpath: reading %s in %s: %w", f.Name, a.Path, err)
	}
	return data, nil
}

func (a *Archive) String() string { return a.Path }

func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}
