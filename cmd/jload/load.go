package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/daimatz/jload/pkg/classfile"
	"github.com/daimatz/jload/pkg/classpath"
	"github.com/daimatz/jload/pkg/vm"
	"github.com/spf13/cobra"
)

var loadFlags struct {
	bootClassPath string
	classPath     string
	noVerify      bool
	parallel      int
	snapshot      string
	resolveRefs   bool
}

var loadCmd = &cobra.Command{
	Use:   "load CLASS...",
	Short: "Load classes and report where they were defined",
	Example: `  jload load java.lang.String
  jload load --classpath build/classes:lib/dep.jar com.example.Main --resolve-refs`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if f := loadFlags.bootClassPath; f != "" {
			cfg.ClassPath.Boot = strings.Split(f, string(os.PathListSeparator))
		}
		if f := loadFlags.classPath; f != "" {
			cfg.ClassPath.User = strings.Split(f, string(os.PathListSeparator))
		}
		if loadFlags.noVerify {
			cfg.Loading.Verify = false
		}
		if len(cfg.ClassPath.Boot) == 0 {
			return errors.New("no boot class path: set JAVA_HOME, JAVA_BASE_JMOD or --boot-classpath")
		}

		opts, err := vm.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}
		defer opts.BootClassPath.Close()

		rt := vm.NewClassPathRuntime()
		defer rt.Close()
		opts.Runtime = rt
		opts.OnUnloading = func(cl *vm.ClassLoader) {
			fmt.Println(MutedStyle.Render("unloading " + cl.String()))
		}
		machine := vm.New(opts)
		defer machine.Shutdown()

		loader := machine.Bootstrap()
		if len(cfg.ClassPath.User) > 0 {
			path, err := classpath.New(cfg.ClassPath.User...)
			if err != nil {
				return fmt.Errorf("class path: %w", err)
			}
			loader = machine.LookupLoader(rt.NewLoader(nil, path))
		}

		names := make([]string, len(args))
		for i, arg := range args {
			names[i] = binaryName(arg)
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		classes, loadErr := machine.Preload(ctx, loader, names, loadFlags.parallel)
		printClasses(classes)
		if loadErr == nil && loadFlags.resolveRefs {
			loadErr = resolveReferences(ctx, machine, loader, classes)
		}

		if loadFlags.snapshot != "" {
			if err := writeSnapshot(machine, loadFlags.snapshot); err != nil {
				return err
			}
		}

		if collector, ok := opts.Collector.(*vm.ReachabilityCollector); ok && cfg.GC.ClassUnloading {
			gc := vm.NewUnloadingGC(machine, collector, cfg.GC.SweepInterval.Duration)
			stats := gc.SweepNow()
			fmt.Println(MutedStyle.Render(fmt.Sprintf("unloading sweep: %d of %d loaders unloaded, %d classes remain",
				stats.Unloaded, stats.Loaders, stats.Classes)))
		}
		return loadErr
	},
}

// resolveReferences loads every class named in the constant pools of the
// given classes through the same loader.
func resolveReferences(ctx context.Context, machine *vm.VM, loader *vm.ClassLoader, classes []*vm.Class) error {
	seen := make(map[string]bool)
	var refs []string
	for _, c := range classes {
		if c == nil || c.File == nil {
			continue
		}
		seen[c.Name] = true
		for _, name := range classfile.ReferencedClasses(c.File.ConstantPool) {
			if !seen[name] {
				seen[name] = true
				refs = append(refs, name)
			}
		}
	}
	if len(refs) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println(HeaderStyle.Render(fmt.Sprintf("Referenced classes (%d)", len(refs))))
	resolved, err := machine.Preload(ctx, loader, refs, loadFlags.parallel)
	printClasses(resolved)
	return err
}

func printClasses(classes []*vm.Class) {
	for _, c := range classes {
		if c == nil {
			continue
		}
		super := "-"
		if c.Super != nil {
			super = c.Super.Name
		}
		fmt.Printf("%s %s %s %s\n",
			GoodStyle.Render(c.Name),
			InfoStyle.Render("["+c.Loader.String()+"]"),
			MutedStyle.Render("extends "+super),
			MutedStyle.Render(c.State().String()))
	}
}

func writeSnapshot(machine *vm.VM, path string) error {
	data, err := vm.MarshalSnapshot(machine.Snapshot())
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	fmt.Println(MutedStyle.Render("snapshot written to " + path))
	return nil
}

func init() {
	f := loadCmd.Flags()
	f.StringVar(&loadFlags.bootClassPath, "boot-classpath", "", "boot class path (directories, jars, jmods)")
	f.StringVar(&loadFlags.classPath, "classpath", "", "class path for a class path loader; classes are loaded through it")
	f.BoolVar(&loadFlags.noVerify, "noverify", false, "skip verification")
	f.IntVar(&loadFlags.parallel, "parallel", 4, "maximum concurrent loads (0: unlimited)")
	f.StringVar(&loadFlags.snapshot, "snapshot", "", "write a loader snapshot to this file")
	f.BoolVar(&loadFlags.resolveRefs, "resolve-refs", false, "also load every class referenced from the loaded classes")
	rootCmd.AddCommand(loadCmd)
}
