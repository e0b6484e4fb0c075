package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/hideout/internal/config"
	"github.com/zulandar/hideout/internal/db"
	"golang.org/x/term"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Hideout database",
		Long:  "Creates the database if needed, migrates all tables and seeds fixture projects from config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Hideout config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config from %s\n", configPath)

	if err := initDatabase(cmd, cfg); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nHideout database initialized successfully.")
	return nil
}

// initDatabase creates, migrates and seeds the configured database.
func initDatabase(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()

	gormDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Database %s ready\n", db.Describe(cfg.Database))
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedProjects(gormDB, cfg.Seed.Projects); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d projects:", len(cfg.Seed.Projects))
	for _, p := range cfg.Seed.Projects {
		fmt.Fprintf(out, " %s", p.ID)
	}
	fmt.Fprintln(out)

	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Hideout database",
		Long: `Drops the configured database (or removes the SQLite file), then
re-creates it: migrate and seed. Asks for confirmation unless --yes is given;
a non-interactive stdin requires --yes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Hideout config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	target := db.Describe(cfg.Database)

	if !skipConfirm {
		if f, ok := cmd.InOrStdin().(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
			return fmt.Errorf("refusing to reset %s: stdin is not a terminal (use --yes)", target)
		}
		if !confirmReset(cmd, target) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := db.Drop(cfg.Database); err != nil {
		return err
	}
	fmt.Fprintf(out, "Dropped %s\n", target)

	if err := initDatabase(cmd, cfg); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nHideout database reset and re-initialized successfully.")
	return nil
}

func confirmReset(cmd *cobra.Command, target string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in %s.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
