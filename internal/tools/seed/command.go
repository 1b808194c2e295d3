package seed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/sandeepkv93/product-catalog/internal/config"
	"github.com/sandeepkv93/product-catalog/internal/database"
	"github.com/sandeepkv93/product-catalog/internal/observability"
	"github.com/sandeepkv93/product-catalog/internal/repository"
	"github.com/sandeepkv93/product-catalog/internal/service"
	"github.com/sandeepkv93/product-catalog/internal/tools/common"
)

const toolName = "seed"

type options struct {
	envFile    string
	timeout    time.Duration
	migrate    bool
	ci         bool
	out        io.Writer
	loadConfig func() (*config.Config, error)
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{loadConfig: config.Load})
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Catalog seed tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.out = cmd.OutOrStdout()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.migrate, "migrate", false, "apply pending migrations before seeding")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newApplyCommand(opts), newDryRunCommand(opts))
	return cmd
}

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Insert the initial products when the catalog is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "apply", func(ctx context.Context) ([]string, error) {
				db, err := openDB(opts)
				if err != nil {
					return nil, err
				}
				defer func() { _ = database.Close(db) }()

				logger := observability.NewLogger()
				svc := service.NewProductService(repository.NewProductRepository(db), nil, service.ProductImageOptions{}, logger)
				report, err := svc.SeedInitialProducts(ctx)
				if err != nil {
					return nil, err
				}
				if report.Skipped() {
					return []string{"catalog not empty; nothing inserted"}, nil
				}
				return []string{fmt.Sprintf("inserted %d product(s)", report.Inserted)}, nil
			})
		},
	}
}

func newDryRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show what seeding would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "dry-run", func(ctx context.Context) ([]string, error) {
				db, err := openDB(opts)
				if err != nil {
					return nil, err
				}
				defer func() { _ = database.Close(db) }()

				count, err := repository.NewProductRepository(db).Count(ctx)
				if err != nil {
					return nil, err
				}
				if count > 0 {
					return []string{fmt.Sprintf("catalog holds %d product(s); seeding would be skipped", count)}, nil
				}
				initial := service.InitialProducts()
				details := make([]string, 0, len(initial)+1)
				for _, p := range initial {
					details = append(details, fmt.Sprintf("would insert %q at %s", p.Name, p.Price))
				}
				details = append(details, "no mutation executed in dry-run mode")
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

func openDB(opts *options) (*gorm.DB, error) {
	if err := common.LoadEnvFile(opts.envFile); err != nil {
		return nil, err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	if opts.migrate {
		if err := database.Migrate(cfg); err != nil {
			return nil, err
		}
	}
	return database.Open(cfg)
}
