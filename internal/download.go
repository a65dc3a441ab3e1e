package internal

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/models"
	"github.com/tessapp/ota/internal/utils"
)

func NewDownloadCmd() *cobra.Command {
	var background bool

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the offered package artifact",
		Long: `Download the package artifact from the last (or a fresh) update check.

Examples:
  ota download              # download now, with progress
  ota download --background # queue for the next background transition`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}

			ctx := context.Background()
			offer := m.Check(ctx)
			if !offer.Available || offer.Channel != models.ChannelPackage {
				logger.Info("No package update to download")
				return nil
			}

			if background {
				m.QueueBackgroundDownload(offer)
				logger.Success("Queued %s for background download", offer.Version)
				return nil
			}

			logger.Info("Downloading %s (%s)...", offer.Version, utils.HumanSize(offer.FileSizeBytes))
			stored, err := m.Download(ctx, offer, renderProgress)
			if err != nil {
				return fmt.Errorf("download failed: %w", err)
			}
			fmt.Println()
			logger.Success("Downloaded %s to %s", stored.Version, stored.CachePath)
			if stored.PublishedPath != "" {
				logger.Info("Also available at %s", stored.PublishedPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&background, "background", false, "Queue the download for the next background transition")
	return cmd
}

func renderProgress(p models.DownloadProgress) {
	fmt.Printf("\r  %6.2f%%  %s / %s  %s  ETA %s   ",
		p.Percent,
		utils.HumanSize(p.BytesLoaded), utils.HumanSize(p.BytesTotal),
		utils.HumanSpeed(p.BytesPerSecond), utils.HumanETA(p.ETASeconds))
}
