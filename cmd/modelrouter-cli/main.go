// Command modelrouter-cli validates router config files and inspects the
// model catalog from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	modelrouter "github.com/ferro-labs/model-router"
	"github.com/ferro-labs/model-router/internal/version"
	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/registry"
)

func main() {
	root := &cobra.Command{
		Use:           "modelrouter-cli",
		Short:         "Inspect and validate model-router configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValidateCmd(), newModelsCmd(), newSearchCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a router configuration file (JSON/YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := modelrouter.LoadConfig(args[0])
			if err != nil {
				return err
			}
			if err := modelrouter.ValidateFileConfig(*cfg); err != nil {
				return err
			}

			fmt.Println("✓ Config is valid")
			fmt.Printf("  Providers: %d\n", len(cfg.Providers))
			fmt.Printf("  Models:    %d\n", len(cfg.Models))
			fmt.Printf("  Overrides: %d\n", len(cfg.Overrides))
			if len(cfg.WeightProfiles) > 0 {
				names := make([]string, 0, len(cfg.WeightProfiles))
				for name := range cfg.WeightProfiles {
					names = append(names, name)
				}
				fmt.Printf("  Profiles:  %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}
}

// buildRouter constructs a router from a config file and refreshes the
// catalog. Refresh failures are reported but not fatal so static models
// remain inspectable without live credentials.
func buildRouter(path string) (*modelrouter.Router, error) {
	router, err := modelrouter.NewFromFile(path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := router.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: catalog refresh failed: %v\n", err)
	}
	return router, nil
}

func newModelsCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the model catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			router, err := buildRouter(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = router.Close() }()

			list := router.Models()
			if len(list) == 0 {
				fmt.Println("Catalog is empty.")
				return nil
			}
			for _, m := range list {
				fmt.Printf("%-40s tier=%-10s ctx=%-8d caps=%s\n",
					m.Key(), m.Tier, m.ContextWindow, joinCaps(m.Capabilities))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "router.yaml", "config file path")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		configPath string
		require    []string
		optional   []string
		providers  []string
		tier       string
		maxPrice   float64
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Score catalog models against a selection predicate",
		RunE: func(cmd *cobra.Command, args []string) error {
			router, err := buildRouter(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = router.Close() }()

			pred := registry.Predicate{
				Required: toCaps(require),
				Optional: toCaps(optional),
				Allow:    providers,
				Tier:     models.Tier(tier),
			}
			if maxPrice > 0 {
				pred.Budget = &models.Budget{MaxCostPerMillionTokens: &maxPrice}
			}

			results := router.SearchModels(pred)
			if len(results) == 0 {
				fmt.Println("No models match.")
				return nil
			}
			for _, sm := range results {
				fmt.Printf("%7.4f  %s\n", sm.Score, sm.Model.Key())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "router.yaml", "config file path")
	cmd.Flags().StringSliceVar(&require, "require", nil, "required capabilities")
	cmd.Flags().StringSliceVar(&optional, "optional", nil, "optional capabilities (score boost)")
	cmd.Flags().StringSliceVar(&providers, "provider", nil, "restrict to these providers")
	cmd.Flags().StringVar(&tier, "tier", "", "restrict to a tier (flagship|efficient|...)")
	cmd.Flags().Float64Var(&maxPrice, "max-price", 0, "max average text price per million tokens")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("modelrouter-cli %s\n", version.String())
		},
	}
}

func toCaps(ss []string) models.CapabilitySet {
	var out models.CapabilitySet
	for _, s := range ss {
		out = out.Add(models.Capability(strings.TrimSpace(s)))
	}
	return out
}

func joinCaps(caps models.CapabilitySet) string {
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}
