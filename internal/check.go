package internal

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/models"
	"github.com/tessapp/ota/internal/notifier"
)

func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check both channels for an available update",
		Long: `Check the bundle channel first, then the package channel, for an update.

Examples:
  ota check             # query both channels and show the result`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}

			offer := m.Check(context.Background())
			if !offer.Available {
				logger.Success("Already up to date (version %s)", m.CurrentVersion())
				return nil
			}

			notifier.DisplayOffer(offer, m.CurrentVersion())
			if offer.Channel == models.ChannelPackage && len(offer.Changelog) > 0 {
				logger.Info("Changelog:\n  - %s", strings.Join(offer.Changelog, "\n  - "))
			}
			return nil
		},
	}
	return cmd
}
