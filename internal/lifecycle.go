package internal

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/notifier"
)

// The foreground/background commands stand in for the host app's lifecycle
// callbacks so the full pipeline can be driven from a terminal.

func NewForegroundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foreground",
		Short: "Simulate a transition to the foreground",
		Long: `Run install detection and report a pending install, as the host app does
when it comes to the foreground.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}

			event := m.OnForeground(context.Background())
			if n := event.Notice; n != nil {
				if n.PackageApplied {
					logger.Success("Update applied: %s -> %s", n.FromVersion, n.ToVersion)
				}
				if n.BundleApplied {
					logger.Success("Bundle applied: %s -> %s", n.FromBundleID, n.ToBundleID)
				}
			}
			if event.PendingInstall != nil {
				logger.Info("Update %s is downloaded and ready; run 'ota install'", event.PendingInstall.Version)
			}
			if event.Notice == nil && event.PendingInstall == nil {
				// Fall back to reminding about the last known offer.
				notifier.DisplayUpdateNotification(m.KV, m.CurrentVersion())
				logger.Info("Nothing new")
			}
			return nil
		},
	}
	return cmd
}

func NewBackgroundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "background",
		Short: "Simulate a transition to the background",
		Long:  `Start a queued background download, if one was requested.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			m.OnBackground(context.Background())
			return nil
		},
	}
	return cmd
}
