// Package cli wires the command-pipeline binary.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"command-pipeline/internal/common/config"
	"command-pipeline/internal/common/logger"
	"command-pipeline/internal/common/policy"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	PolicyPath string
	LogLevel   string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "command-pipeline",
		Short:         "Natural-language command pipeline for field-service operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default: configs/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.PolicyPath, "policy", "", "policy file, overrides policy.path")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level, overrides logging.level")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewExtractCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewPolicyCommand(opts))
	cmd.AddCommand(NewRegistryCommand())

	return cmd
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.PolicyPath != "" {
		cfg.Policy.Path = o.PolicyPath
	}
	return cfg, nil
}

// loadPolicy returns the built-in tables when path is empty.
func loadPolicy(path string) (*policy.Policy, error) {
	p, err := policy.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	return p, nil
}

func newLogger(cfg config.LoggingConfig) logger.Logger {
	return logger.NewZapAdapter(logger.NewWithOutput(cfg.Level, cfg.Format, cfg.Output))
}
