package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/daimatz/jload/pkg/config"
	"github.com/daimatz/jload/pkg/vm"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var (
	configPath string
	verbose    int
)

var rootCmd = &cobra.Command{
	Use:           "jload",
	Short:         "Load and inspect Java classes",
	Long:          `jload resolves Java classes through a bootstrap class path and class path loaders, and reports what was defined where.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, CriticalStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

// loadConfig reads --config, or searches upward from the working
// directory, and configures logging and lock diagnostics from it. It runs
// before any VM is created.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}

	var logFile *string
	if cfg.Log.File != "" {
		logFile = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity+verbose, logFile)
	vm.ConfigureLockDiagnostics(cfg.Debug)
	return cfg, nil
}

// binaryName converts "java.lang.String" to "java/lang/String". Array
// descriptors are left alone.
func binaryName(name string) string {
	if strings.HasPrefix(name, "[") {
		return name
	}
	return strings.ReplaceAll(strings.TrimSuffix(name, ".class"), ".", "/")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default: nearest "+config.FileName+")")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity")
}
