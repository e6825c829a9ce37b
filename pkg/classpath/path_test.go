package classpath

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/daimatz/jload/pkg/classfile"
	"github.com/daimatz/jload/pkg/classfile/classfiletest"
)

func TestDirElement(t *testing.T) {
	dir := t.TempDir()
	if _, err := classfiletest.New("pkg/Foo").WriteFile(dir); err != nil {
		t.Fatalf("writing class: %v", err)
	}
	d := &Dir{Root: dir}

	t.Run("hit", func(t *testing.T) {
		data, err := d.ReadClass("pkg/Foo")
		if err != nil {
			t.Fatalf("ReadClass: %v", err)
		}
		cf, err := classfile.ParseBytes(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if name, _ := cf.ClassName(); name != "pkg/Foo" {
			t.Errorf("class name: got %q, want %q", name, "pkg/Foo")
		}
	})

	t.Run("miss", func(t *testing.T) {
		_, err := d.ReadClass("pkg/Bar")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDirRejectsNamesOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	if _, err := classfiletest.New("Escape").WriteFile(parent); err != nil {
		t.Fatalf("writing class: %v", err)
	}
	root := filepath.Join(parent, "classes")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatal(err)
	}
	d := &Dir{Root: root}

	for _, name := range []string{"../Escape", "pkg/../../Escape", "/Escape", "./Escape"} {
		if _, err := d.ReadClass(name); !errors.Is(err, ErrNotFound) {
			t.Errorf("ReadClass(%q): expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestArchiveElement(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "lib.jar")
	if err := classfiletest.WriteJar(jar, "", nil,
		classfiletest.New("pkg/Foo"), classfiletest.New("pkg/sub/Bar")); err != nil {
		t.Fatalf("writing jar: %v", err)
	}

	e, err := NewElement(jar)
	if err != nil {
		t.Fatalf("NewElement: %v", err)
	}
	defer e.Close()
	if _, ok := e.(*Archive); !ok {
		t.Fatalf("element type: got %T, want *Archive", e)
	}

	for _, name := range []string{"pkg/Foo", "pkg/sub/Bar"} {
		if _, err := e.ReadClass(name); err != nil {
			t.Errorf("ReadClass(%s): %v", name, err)
		}
	}
	if _, err := e.ReadClass("pkg/Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestArchiveConcurrentReads(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "lib.jar")
	if err := classfiletest.WriteJar(jar, "", nil, classfiletest.New("pkg/Foo")); err != nil {
		t.Fatalf("writing jar: %v", err)
	}
	a := OpenArchive(jar)
	defer a.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.ReadClass("pkg/Foo"); err != nil {
				t.Errorf("ReadClass: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestJmodElement(t *testing.T) {
	jmod := filepath.Join(t.TempDir(), "java.base.jmod")
	header := []byte{'J', 'M', 0x01, 0x00}
	if err := classfiletest.WriteJar(jmod, "classes/", header,
		classfiletest.New("java/lang/Object").WithSuper("")); err != nil {
		t.Fatalf("writing jmod: %v", err)
	}

	e, err := NewElement(jmod)
	if err != nil {
		t.Fatalf("NewElement: %v", err)
	}
	defer e.Close()

	if _, err := e.ReadClass("java/lang/Object"); err != nil {
		t.Errorf("ReadClass(java/lang/Object): %v", err)
	}
	if _, err := e.ReadClass("classes/java/lang/Object"); !errors.Is(err, ErrNotFound) {
		t.Errorf("prefixed name: expected ErrNotFound, got %v", err)
	}
}

func TestJmodInvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jmod")
	if err := os.WriteFile(path, []byte("PK\x03\x04garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := OpenJmod(path).ReadClass("java/lang/Object")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected open error, got %v", err)
	}
}

type recordingElement struct {
	Element
	probes *[]string
}

func (r recordingElement) ReadClass(name string) ([]byte, error) {
	*r.probes = append(*r.probes, r.Element.String())
	return r.Element.ReadClass(name)
}

func TestPathProbeOrder(t *testing.T) {
	root := t.TempDir()
	dirA := filepath.Join(root, "dirA")
	if err := os.Mkdir(dirA, 0o755); err != nil {
		t.Fatal(err)
	}
	jarB := filepath.Join(root, "b.jar")
	if err := classfiletest.WriteJar(jarB, "", nil, classfiletest.New("pkg/Foo")); err != nil {
		t.Fatal(err)
	}

	p, err := New(dirA, jarB)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	var probes []string
	for i := range p {
		p[i] = recordingElement{Element: p[i], probes: &probes}
	}

	_, from, err := p.ReadClass("pkg/Foo")
	if err != nil {
		t.Fatalf("ReadClass: %v", err)
	}
	if from.String() != jarB {
		t.Errorf("found in %s, want %s", from, jarB)
	}
	if len(probes) != 2 || probes[0] != dirA || probes[1] != jarB {
		t.Errorf("probe order: got %v, want [%s %s]", probes, dirA, jarB)
	}

	if _, _, err := p.ReadClass("pkg/Nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPathSkipsBrokenElements(t *testing.T) {
	root := t.TempDir()
	broken := filepath.Join(root, "broken.jar")
	if err := os.WriteFile(broken, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := classfiletest.New("pkg/Foo").WriteFile(root); err != nil {
		t.Fatal(err)
	}

	p, err := New(broken, root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	if _, from, err := p.ReadClass("pkg/Foo"); err != nil || from.String() != root {
		t.Errorf("ReadClass: from=%v err=%v", from, err)
	}
}

func TestParseList(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	p, err := Parse(a + string(os.PathListSeparator) + b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p) != 2 {
		t.Fatalf("len: got %d, want 2", len(p))
	}
	if p.String() != a+string(os.PathListSeparator)+b {
		t.Errorf("String: got %q", p.String())
	}

	if _, err := Parse(filepath.Join(a, "missing")); err == nil {
		t.Error("expected error for missing entry")
	}
	if p, err := Parse(""); err != nil || len(p) != 0 {
		t.Errorf("empty list: got %v, %v", p, err)
	}
}
