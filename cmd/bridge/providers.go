package main

import (
	"fmt"
	"io"
	"os"

	"github.com/nulzo/model-bridge/internal/cli"
	"github.com/nulzo/model-bridge/internal/config"
	"github.com/nulzo/model-bridge/internal/llm"
	"github.com/nulzo/model-bridge/internal/ratelimit"
	"github.com/nulzo/model-bridge/pkg/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the providers the broker would register and their rate limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			registry := llm.Build(cfg.EnabledProviders(), zap.NewNop())
			printProviders(os.Stdout, registry, ratelimit.LimitsFromConfig(cfg.RateLimits))
			return nil
		},
	}
}

func printProviders(w io.Writer, registry *llm.Registry, limits map[api.ProviderID]ratelimit.Limit) {
	configured := registry.Configured()
	for _, id := range registry.IDs() {
		mark := cli.CheckMark()
		if !configured[id] {
			mark = cli.WarningSign()
		}

		limit := "unlimited"
		if l, ok := limits[id]; ok {
			limit = fmt.Sprintf("%d req / %s", l.Requests, l.Window)
		}

		entry, _ := registry.Lookup(id)
		fmt.Fprintf(w, "%s %-8s %-28s %s\n", mark, id, entry.DefaultModel, cli.Style(limit, cli.DimCode))
	}
}
