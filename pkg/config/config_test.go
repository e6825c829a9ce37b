package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("JAVA_BASE_JMOD", "/opt/jdk/java.base.jmod")
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[classpath]
boot = ["boot", "/abs/rt.jar"]
user = ["classes"]

[loading]
verify = false
max-classes = 500

[gc]
class-unloading = false
sweep-interval = "5s"

[native]
search-path = ["lib"]

[log]
verbosity = 2
file = "jload.log"

[debug]
deadlock-detection = true
deadlock-timeout = "2m"
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got, want := c.ClassPath.Boot, []string{filepath.Join(dir, "boot"), "/abs/rt.jar"}; !slices.Equal(got, want) {
		t.Errorf("boot: got %v, want %v", got, want)
	}
	if got, want := c.ClassPath.User, []string{filepath.Join(dir, "classes")}; !slices.Equal(got, want) {
		t.Errorf("user: got %v, want %v", got, want)
	}
	if got, want := c.Native.SearchPath, []string{filepath.Join(dir, "lib")}; !slices.Equal(got, want) {
		t.Errorf("search-path: got %v, want %v", got, want)
	}
	if c.Loading.Verify {
		t.Error("verify: got true, want false")
	}
	if c.Loading.MaxClasses != 500 {
		t.Errorf("max-classes: got %d, want 500", c.Loading.MaxClasses)
	}
	if c.GC.ClassUnloading {
		t.Error("class-unloading: got true, want false")
	}
	if c.GC.SweepInterval.Duration != 5*time.Second {
		t.Errorf("sweep-interval: got %v, want 5s", c.GC.SweepInterval)
	}
	if c.Log.Verbosity != 2 || c.Log.File != "jload.log" {
		t.Errorf("log: got %+v", c.Log)
	}
	if !c.Debug.DeadlockDetection || c.Debug.DeadlockTimeout.Duration != 2*time.Minute {
		t.Errorf("debug: got %+v", c.Debug)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JAVA_BASE_JMOD", "/opt/jdk/java.base.jmod")
	c, err := Load(writeConfig(t, t.TempDir(), "[log]\nverbosity = 0\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !c.Loading.Verify {
		t.Error("verify should default to true")
	}
	if !c.GC.ClassUnloading {
		t.Error("class-unloading should default to true")
	}
	if c.GC.SweepInterval.Duration != 30*time.Second {
		t.Errorf("sweep-interval: got %v, want 30s", c.GC.SweepInterval)
	}
	if len(c.ClassPath.Boot) != 1 || c.ClassPath.Boot[0] != "/opt/jdk/java.base.jmod" {
		t.Errorf("boot: got %v, want the discovered jmod", c.ClassPath.Boot)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("unknown key", func(t *testing.T) {
		_, err := Load(writeConfig(t, t.TempDir(), "[loading]\nverfy = true\n"))
		if err == nil || !strings.Contains(err.Error(), "unknown keys") {
			t.Errorf("expected unknown keys error, got %v", err)
		}
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Load(writeConfig(t, t.TempDir(), "[gc]\nsweep-interval = \"soon\"\n"))
		if err == nil {
			t.Error("expected error for invalid duration")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), FileName)); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[loading]\nmax-classes = 7\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if c.Loading.MaxClasses != 7 {
		t.Errorf("max-classes: got %d, want 7", c.Loading.MaxClasses)
	}
	if c.Dir != root {
		t.Errorf("dir: got %q, want %q", c.Dir, root)
	}
}

func TestFindJmodPath(t *testing.T) {
	t.Setenv("JAVA_BASE_JMOD", "")
	home := t.TempDir()
	jmod := filepath.Join(home, "jmods", "java.base.jmod")
	if err := os.MkdirAll(filepath.Dir(jmod), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jmod, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JAVA_HOME", home)

	if got := FindJmodPath(); got != jmod {
		t.Errorf("FindJmodPath: got %q, want %q", got, jmod)
	}
}
