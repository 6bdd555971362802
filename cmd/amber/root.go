package main

import (
	"github.com/spf13/cobra"

	"github.com/hejijunhao/amber/internal/config"
)

type rootFlags struct {
	configPath string
	treePath   string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:   "amber",
		Short: "Hierarchical intent chatbot",
		Long: `Amber answers questions by walking a tree of topics and comparing
sentence embeddings one level at a time. Follow-up questions resolve
against the conversation context of their session.`,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML config file (default $AMBER_CONFIG)")
	pf.StringVarP(&flags.treePath, "tree", "t", "", "intent tree source, JSON or YAML (overrides config)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	root.AddCommand(
		newServeCmd(&flags),
		newHTTPCmd(&flags),
		newAskCmd(&flags),
		newBuildCmd(&flags),
		newTreeCmd(&flags),
	)
	return root
}

// loadConfig resolves and validates configuration: defaults, file,
// environment, flags.
func loadConfig(flags *rootFlags) (config.Config, error) {
	cfg, err := loadRawConfig(flags)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadRawConfig(flags *rootFlags) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}
	if flags.treePath != "" {
		cfg.Tree.Path = flags.treePath
		cfg.Tree.Snapshot = ""
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, nil
}
