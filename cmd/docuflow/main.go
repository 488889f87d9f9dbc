// Package main is the docuflow CLI entry point.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/docuflow/internal/cli"
	"github.com/hyperjump/docuflow/internal/config"
	"github.com/hyperjump/docuflow/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/docuflow/config.yaml"

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	role       string
	debug      bool
	output     string
}

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present; when neither exists the built-in defaults are
// used and the returned path is empty.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads config and builds the logger for a command run.
func (o *rootOptions) setup() (*config.Config, *zap.Logger, cli.OutputFormat, error) {
	format, err := cli.ParseFormat(o.output)
	if err != nil {
		return nil, nil, "", err
	}
	cfg, resolved, err := loadConfig(o.configPath)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || o.debug
	logger, err := utils.NewLogger(debugMode, cfg.Environment)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.String("environment", cfg.Environment),
		zap.Bool("debug", debugMode))
	return cfg, logger, format, nil
}

// roleFor returns the --role flag, or the configured default role.
func (o *rootOptions) roleFor(cfg *config.Config) string {
	if o.role != "" {
		return o.role
	}
	return cfg.Security.DefaultRole
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "docuflow",
		Short:         "Governed document retrieval and workflow routing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().StringVar(&opts.role, "role", "", "role to act as (default from config)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		newServerCommand(opts),
		newIngestCommand(opts),
		newSearchCommand(opts),
		newQueryCommand(opts),
		newAuditCommand(opts),
		newStatusCommand(opts),
		newVersionCommand(),
	)
	return root
}

func main() {
	_ = godotenv.Load()
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
