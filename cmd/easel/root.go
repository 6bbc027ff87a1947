package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"easel/internal/config"
)

// commandContext resolves the API endpoint lazily so commands that never talk
// to the daemon do not require a config file.
type commandContext struct {
	apiFlag    *string
	tokenFlag  *string
	configFlag *string

	client *apiClient
}

func newCommandContext(apiFlag, tokenFlag, configFlag *string) *commandContext {
	return &commandContext{apiFlag: apiFlag, tokenFlag: tokenFlag, configFlag: configFlag}
}

func (c *commandContext) resolveClient() (*apiClient, error) {
	if c.client != nil {
		return c.client, nil
	}

	bind := strings.TrimSpace(*c.apiFlag)
	token := strings.TrimSpace(*c.tokenFlag)
	if token == "" {
		token = os.Getenv("EASEL_API_TOKEN")
	}

	if bind == "" || token == "" {
		cfg, _, err := config.Load(*c.configFlag)
		if err != nil {
			return nil, fmt.Errorf("resolve api endpoint: %w", err)
		}
		if bind == "" {
			bind = cfg.Paths.APIBind
		}
		if token == "" {
			token = cfg.Paths.APIToken
		}
	}
	if bind == "" {
		return nil, fmt.Errorf("no api address configured; pass --api or set paths.api_bind")
	}

	c.client = newAPIClient(bind, token)
	return c.client, nil
}

func newRootCommand() *cobra.Command {
	var apiFlag string
	var tokenFlag string
	var configFlag string

	ctx := newCommandContext(&apiFlag, &tokenFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "easel",
		Short:         "Easel image generation queue CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "Address of the easeld API (host:port)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "API bearer token")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newQueueCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
