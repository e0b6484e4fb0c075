package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/hideout/internal/config"
	"github.com/zulandar/hideout/internal/generate"
	"github.com/zulandar/hideout/internal/models"
)

func newGenerateCmd() *cobra.Command {
	var (
		configPath  string
		projectType string
	)

	cmd := &cobra.Command{
		Use:   "generate <prompt...>",
		Short: "Run one generation against the configured provider",
		Long: `Sends a single prompt to the configured generation provider and prints
the validated result. Nothing is stored and no plugin is contacted; use it to
check a provider setup.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, configPath, projectType, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Hideout config file")
	cmd.Flags().StringVarP(&projectType, "type", "t", models.ProjectTypeCustom, "project type (obby, racing, tycoon, custom)")
	return cmd
}

func runGenerate(cmd *cobra.Command, configPath, projectType, prompt string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gen, err := generate.New(cfg.Generation, config.Secret(cfg.Generation.APIKeyEnv))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GenerationTimeout())
	defer cancel()
	res, err := gen.Generate(ctx, generate.Request{Prompt: strings.TrimSpace(prompt), ProjectType: projectType})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	fmt.Fprintf(out, "-- commandType: %s\n", res.CommandType)
	fmt.Fprintln(out, res.Code)
	return nil
}
