package classfiletest

import (
	"os"
	"sort"

	"github.com/klauspost/compress/zip"
)

// WriteJar writes a zip archive holding each builder under its binary name.
// A non-empty prefix (for example "classes/" for jmod layouts) is prepended
// to every entry, and header is written verbatim before the zip data.
func WriteJar(path, prefix string, header []byte, classes ...*Builder) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if len(header) > 0 {
		if _, err := f.Write(header); err != nil {
			return err
		}
	}

	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })

	// Entry offsets stay relative to the start of the zip data, the way
	// jmod files are laid out.
	zw := zip.NewWriter(f)
	for _, b := range classes {
		w, err := zw.Create(prefix + b.Name + ".class")
		if err != nil {
			return err
		}
		if _, err := w.Write(b.Bytes()); err != nil {
			return err
		}
	}
	return zw.Close()
}
