package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessapp/ota/internal/errs"
	"github.com/tessapp/ota/internal/installer"
	"github.com/tessapp/ota/internal/logger"
)

func NewInstallCmd() *cobra.Command {
	var later bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the downloaded package artifact",
		Long: `Hand the completed download to the OS installer.

Examples:
  ota install           # launch the installer now
  ota install --later   # postpone; you will be reminded on next start`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}

			stored, ok := m.HasCompletedDownload()
			if !ok {
				logger.Info("Nothing to install; run 'ota download' first")
				return nil
			}

			if later {
				m.ScheduleInstallForLater()
				logger.Success("Install of %s postponed", stored.Version)
				return nil
			}

			result, err := m.Install(context.Background(), stored)
			if err != nil {
				if errors.Is(err, errs.ErrArtifactMissing) {
					logger.Warn("The downloaded file is gone; run 'ota download' again")
					return nil
				}
				return fmt.Errorf("install failed: %w", err)
			}

			switch result.Outcome {
			case installer.OutcomeLaunched:
				logger.Success("Installer launched (%s); the update is confirmed on next start", result.Strategy)
			case installer.OutcomeManualFallback:
				logger.Warn("Could not launch the installer automatically.")
				logger.Info("Install manually from your file manager:")
				logger.Info("  %s", result.CachePath)
				if result.PublishedPath != "" {
					logger.Info("  %s", result.PublishedPath)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&later, "later", false, "Postpone installation")
	return cmd
}
