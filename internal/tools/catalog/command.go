package catalog

import (
	"context"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/product-catalog/internal/client"
)

type options struct {
	baseURL       string
	timeout       time.Duration
	maxImageBytes int64
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "catalog",
		Short:        "Browse the product catalog and add products from the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), opts.baseURL, opts.timeout, opts.maxImageBytes)
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "per-request timeout")
	cmd.Flags().Int64Var(&opts.maxImageBytes, "image-max-bytes", 5<<20, "largest local image accepted for upload")
	return cmd
}

// Run starts the interactive catalog against the API at baseURL.
func Run(ctx context.Context, baseURL string, timeout time.Duration, maxImageBytes int64) error {
	if ctx == nil {
		ctx = context.Background()
	}
	api := client.New(baseURL, client.WithHTTPClient(newHTTPClient(timeout)))
	m := newModel(ctx, client.NewCatalog(api), api, maxImageBytes)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
