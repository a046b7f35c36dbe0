// Package cli implements the crm-query command line tool.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"salesforce-query-workers/internal/common/config"
	"salesforce-query-workers/internal/common/genai"
	"salesforce-query-workers/internal/common/logger"
	"salesforce-query-workers/internal/common/salesforce"
	"salesforce-query-workers/internal/pipeline"
)

// Env holds the constructors the commands use to reach the outside world.
type Env struct {
	LoadConfig func(path string) (*config.Config, error)
	Sessions   func(cfg *config.Config) pipeline.SessionProvider
	Gateway    func(cfg *config.Config) pipeline.Gateway
}

func DefaultEnv() *Env {
	return &Env{
		LoadConfig: func(path string) (*config.Config, error) {
			if path == "" {
				return config.Load()
			}
			return config.LoadFromFile(path)
		},
		Sessions: func(cfg *config.Config) pipeline.SessionProvider {
			auth := salesforce.NewAuthenticator(salesforce.CredentialsFromConfig(cfg.Salesforce), nil)
			return pipeline.SalesforceSessions(auth)
		},
		Gateway: func(cfg *config.Config) pipeline.Gateway {
			return genai.NewClient(cfg.APIs.GenAI)
		},
	}
}

type rootOptions struct {
	env        *Env
	configPath string
	output     string
	verbose    bool
}

func (o *rootOptions) config() (*config.Config, error) {
	cfg, err := o.env.LoadConfig(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func (o *rootOptions) logger() logger.Logger {
	if o.verbose {
		return logger.NewStructured("debug", "console", "stderr")
	}
	return logger.NewStructured("error", "console", "stderr")
}

func (o *rootOptions) session(ctx context.Context, cfg *config.Config) (pipeline.Session, error) {
	s, err := o.env.Sessions(cfg).Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("salesforce login failed: %w", err)
	}
	if s == nil {
		return nil, fmt.Errorf("salesforce login returned no session")
	}
	return s, nil
}

func NewRootCmd(env *Env) *cobra.Command {
	opts := &rootOptions{env: env}

	rootCmd := &cobra.Command{
		Use:   "crm-query",
		Short: "Ask questions about Salesforce data in plain language",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch opts.output {
			case outputText, outputTable, outputJSON:
				return nil
			}
			return fmt.Errorf("unknown output format %q (want text, table or json)", opts.output)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: configs/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "Output format (text|table|json)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log pipeline progress to stderr")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{outputText, outputTable, outputJSON}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newAskCommand(opts))
	rootCmd.AddCommand(newEntitiesCommand(opts))
	rootCmd.AddCommand(newDescribeCommand(opts))
	rootCmd.AddCommand(newRegistryCommand())

	return rootCmd
}

// Execute runs the root command with the default environment.
func Execute() error {
	if err := NewRootCmd(DefaultEnv()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
