package vm

import (
	"fmt"

	"github.com/daimatz/jload/pkg/classpath"
	"github.com/daimatz/jload/pkg/config"
	"github.com/daimatz/jload/pkg/native"
	"github.com/sasha-s/go-deadlock"
)

// Options configures a VM.
type Options struct {
	// BootClassPath is probed in order by the bootstrap loader.
	BootClassPath classpath.Path

	Parser   Parser
	Verifier Verifier
	Preparer Preparer
	NoVerify bool

	Runtime   ManagedRuntime
	Collector Collector
	Natives   *native.Loader

	// MaxClasses bounds the number of defined classes; 0 means unbounded.
	MaxClasses int

	// OnUnloading is called for each loader just before it is unloaded.
	OnUnloading func(*ClassLoader)
}

// OptionsFromConfig builds VM options from a configuration. The returned
// boot class path must be closed by the caller. Lock diagnostics are not
// part of the options; see ConfigureLockDiagnostics.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	boot, err := classpath.New(cfg.ClassPath.Boot...)
	if err != nil {
		return Options{}, fmt.Errorf("boot class path: %w", err)
	}

	return Options{
		BootClassPath: boot,
		NoVerify:      !cfg.Loading.Verify,
		Collector:     NewReachabilityCollector(cfg.GC.ClassUnloading),
		Natives:       native.NewLoader(cfg.Native.SearchPath...),
		MaxClasses:    cfg.Loading.MaxClasses,
	}, nil
}

func init() {
	// Detection is off until ConfigureLockDiagnostics turns it on, as in
	// config.Default.
	deadlock.Opts.Disable = true
}

// ConfigureLockDiagnostics applies the process-wide lock-order and deadlock
// detection settings. The settings are global to the process: call it once
// at startup, before any VM exists or any loader lock is taken.
func ConfigureLockDiagnostics(d config.Debug) {
	deadlock.Opts.Disable = !d.DeadlockDetection
	if d.DeadlockTimeout.Duration > 0 {
		deadlock.Opts.DeadlockTimeout = d.DeadlockTimeout.Duration
	}
}
