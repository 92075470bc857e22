package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hkfcheung/regintel-sub001/internal/app"
)

func newDiscoverCmd() *cobra.Command {
	var domain string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run one discovery pass",
		Long: `Crawls the named allow-listed domain, or every domain whose
discovery cadence is due, and queues ingestion jobs for unseen URLs.
Queued jobs execute before the command returns only if workers drain
them; for a one-shot pass the results report what was queued.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.Discovery.Run(cmd.Context(), domain)
			if err != nil {
				return err
			}
			for _, res := range results {
				logger.Info("discovery result",
					zap.String("domain", res.Domain),
					zap.Int("urls_found", res.URLsFound),
					zap.Int("urls_queued", res.URLsQueued),
					zap.Strings("errors", res.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "limit the pass to one domain")
	return cmd
}
