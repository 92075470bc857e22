package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hkfcheung/regintel-sub001/internal/app"
)

func newPollFeedsCmd() *cobra.Command {
	var feedID string

	cmd := &cobra.Command{
		Use:   "poll-feeds",
		Short: "Run one feed-poll pass",
		Long: `Polls the named feed subscription, or every feed whose polling
cadence is due, and queues ingestion jobs for entries not already stored.`,
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

			results, err := a.Feeds.Run(cmd.Context(), feedID)
			if err != nil {
				return err
			}
			for _, res := range results {
				logger.Info("feed poll result",
					zap.String("feed_id", res.FeedID),
					zap.Int("items_found", res.ItemsFound),
					zap.Int("items_queued", res.ItemsQueued),
					zap.Strings("errors", res.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&feedID, "feed", "", "limit the pass to one feed id")
	return cmd
}
