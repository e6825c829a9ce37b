// Package config handles jload.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "jload.toml"

// Config represents a jload.toml file.
type Config struct {
	ClassPath ClassPath `toml:"classpath"`
	Loading   Loading   `toml:"loading"`
	GC        GC        `toml:"gc"`
	Native    Native    `toml:"native"`
	Log       Log       `toml:"log"`
	Debug     Debug     `toml:"debug"`

	// Dir is the directory containing the file (set at load time).
	Dir string `toml:"-"`
}

// ClassPath configures where classes come from.
type ClassPath struct {
	Boot []string `toml:"boot"`
	User []string `toml:"user"`
}

// Loading configures the definition pipeline.
type Loading struct {
	Verify     bool `toml:"verify"`
	MaxClasses int  `toml:"max-classes"`
}

// GC configures class unloading.
type GC struct {
	ClassUnloading bool     `toml:"class-unloading"`
	SweepInterval  Duration `toml:"sweep-interval"`
}

// Native configures native library lookup.
type Native struct {
	SearchPath []string `toml:"search-path"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Debug holds lock diagnostics settings.
type Debug struct {
	DeadlockDetection bool     `toml:"deadlock-detection"`
	DeadlockTimeout   Duration `toml:"deadlock-timeout"`
}

// Duration decodes TOML strings such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{
		Loading: Loading{Verify: true},
		GC: GC{
			ClassUnloading: true,
			SweepInterval:  Duration{30 * time.Second},
		},
		Log: Log{Verbosity: 1},
		Debug: Debug{
			DeadlockTimeout: Duration{30 * time.Second},
		},
	}
	if jmod := FindJmodPath(); jmod != "" {
		c.ClassPath.Boot = []string{jmod}
	}
	return c
}

// Load parses a configuration file, filling unset values from Default.
// Relative class path and search path entries are resolved against the
// file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	c.ClassPath.Boot = c.resolve(c.ClassPath.Boot)
	c.ClassPath.User = c.resolve(c.ClassPath.User)
	c.Native.SearchPath = c.resolve(c.Native.SearchPath)

	return c, nil
}

func (c *Config) resolve(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			out[i] = p
		} else {
			out[i] = filepath.Join(c.Dir, p)
		}
	}
	return out
}

// FindAndLoad walks up from startDir to find a jload.toml file, then loads
// it. Returns Default() if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// FindJmodPath locates java.base.jmod for the default boot class path.
func FindJmodPath() string {
	// 1. Explicit env var
	if env := os.Getenv("JAVA_BASE_JMOD"); env != "" {
		return env
	}
	// 2. JAVA_HOME
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		p := filepath.Join(javaHome, "jmods", "java.base.jmod")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	// 3. Glob fallback
	matches, _ := filepath.Glob("/usr/lib/jvm/java-*-openjdk-*/jmods/java.base.jmod")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}
