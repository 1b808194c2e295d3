package migrate

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/product-catalog/internal/config"
	"github.com/sandeepkv93/product-catalog/internal/database"
	"github.com/sandeepkv93/product-catalog/internal/tools/common"
)

const toolName = "migrate"

type options struct {
	envFile    string
	timeout    time.Duration
	ci         bool
	out        io.Writer
	loadConfig func() (*config.Config, error)
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{loadConfig: config.Load})
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Catalog schema migration tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.out = cmd.OutOrStdout()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newUpCommand(opts),
		newDownCommand(opts),
		newStatusCommand(opts),
		newPlanCommand(opts),
	)
	return cmd
}

func newUpCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "up", func(ctx context.Context) ([]string, error) {
				cfg, err := loadConfig(opts)
				if err != nil {
					return nil, err
				}
				before, err := database.Status(cfg)
				if err != nil {
					return nil, err
				}
				if err := database.Migrate(cfg); err != nil {
					return nil, err
				}
				after, err := database.Status(cfg)
				if err != nil {
					return nil, err
				}
				return []string{
					"driver: " + cfg.DatabaseDriver,
					fmt.Sprintf("schema version: %d -> %d", before.Version, after.Version),
				}, nil
			})
		},
	}
}

func newDownCommand(opts *options) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "down", func(ctx context.Context) ([]string, error) {
				cfg, err := loadConfig(opts)
				if err != nil {
					return nil, err
				}
				if err := database.MigrateDown(cfg, steps); err != nil {
					return nil, err
				}
				status, err := database.Status(cfg)
				if err != nil {
					return nil, err
				}
				return []string{
					fmt.Sprintf("rolled back %d step(s)", steps),
					fmt.Sprintf("schema version: %d", status.Version),
				}, nil
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "status", func(ctx context.Context) ([]string, error) {
				cfg, err := loadConfig(opts)
				if err != nil {
					return nil, err
				}
				status, err := database.Status(cfg)
				if err != nil {
					return nil, err
				}
				details := []string{
					"driver: " + cfg.DatabaseDriver,
					fmt.Sprintf("schema version: %d (latest %d)", status.Version, status.Latest),
				}
				if status.Dirty {
					return details, fmt.Errorf("schema version %d is dirty; fix it manually before migrating", status.Version)
				}
				if status.Pending() {
					details = append(details, "migrations pending")
				} else {
					details = append(details, "schema up to date")
				}
				return details, nil
			})
		},
	}
}

func newPlanCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "List migrations that up would apply (dry-run)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "plan", func(ctx context.Context) ([]string, error) {
				cfg, err := loadConfig(opts)
				if err != nil {
					return nil, err
				}
				status, err := database.Status(cfg)
				if err != nil {
					return nil, err
				}
				pending, err := database.PendingMigrations(cfg.DatabaseDriver, status.Version)
				if err != nil {
					return nil, err
				}
				if len(pending) == 0 {
					return []string{"nothing to apply"}, nil
				}
				details := make([]string, 0, len(pending)+1)
				for _, m := range pending {
					details = append(details, "would apply "+m.Name)
				}
				details = append(details, "no mutation executed in plan mode")
				return details, nil
			})
		},
	}
}

func execute(opts *options, command string, fn common.Action) error {
	return common.Execute(common.RunOptions{
		Tool:    toolName,
		Command: command,
		CI:      opts.ci,
		Timeout: opts.timeout,
		Out:     opts.out,
	}, fn)
}

func loadConfig(opts *options) (*config.Config, error) {
	if err := common.LoadEnvFile(opts.envFile); err != nil {
		return nil, err
	}
	return opts.loadConfig()
}
