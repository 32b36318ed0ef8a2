package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"autogippity/pkg/config"
	"autogippity/pkg/logx"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	projectDir string
	debug      bool
}

func (o *globalOptions) resolvedConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	return filepath.Join(o.projectDir, config.DefaultConfigFile)
}

// loadConfig loads .env, the config file and, when a password is available,
// the encrypted secrets file.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(filepath.Join(o.projectDir, ".env")); err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.resolvedConfigPath())
	if err != nil {
		return nil, err
	}
	if cfg.Debug.Enabled || o.debug {
		logx.SetDebugConfig(true)
	}
	if len(cfg.Debug.Domains) > 0 {
		logx.SetDebugDomains(cfg.Debug.Domains)
	}
	return cfg, nil
}

// NewRoot builds the gippity command tree.
func NewRoot() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "gippity",
		Short:         "Solutions architect agent for small web servers",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default <project-dir>/gippity.yaml)")
	root.PersistentFlags().StringVarP(&opts.projectDir, "project-dir", "p", ".", "project directory")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		runCmd(opts),
		historyCmd(opts),
		secretsCmd(opts),
		capabilitiesCmd(),
		versionCmd(),
	)
	return root
}
