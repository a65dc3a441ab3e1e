package internal

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tessapp/ota/internal/models"
	"github.com/tessapp/ota/internal/notifier"
	"github.com/tessapp/ota/internal/printer"
	"github.com/tessapp/ota/internal/store"
	"github.com/tessapp/ota/internal/utils"
)

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the update subsystem's current state",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			p := printer.NewColorPrinter()

			rows := []notifier.StatusRow{
				{Item: "Package version", Value: m.CurrentVersion()},
			}
			if id := m.CurrentBundleID(); id != "" {
				rows = append(rows, notifier.StatusRow{Item: "Bundle", Value: id})
			}

			if stored, ok := m.HasCompletedDownload(); ok {
				rows = append(rows, notifier.StatusRow{
					Item: "Downloaded update",
					Value: p.Success("%s (%s)", stored.Version,
						utils.HumanSize(utils.FileSize(stored.CachePath))),
				})
			} else {
				rows = append(rows, notifier.StatusRow{Item: "Downloaded update", Value: p.Muted("none")})
			}

			var progress models.DownloadProgress
			if store.ReadJSON(m.KV, store.KeyDownloadProgress, &progress) {
				rows = append(rows, notifier.StatusRow{
					Item:  "In-flight download",
					Value: p.Warning("%.1f%% of %s", progress.Percent, utils.HumanSize(progress.BytesTotal)),
				})
			}

			var pending models.PendingDownload
			if store.ReadJSON(m.KV, store.KeyPendingDownload, &pending) {
				rows = append(rows, notifier.StatusRow{
					Item:  "Queued background download",
					Value: pending.Offer.Version,
				})
			}

			var postponed models.Postponement
			if store.ReadJSON(m.KV, store.KeyUserPostponedUpdate, &postponed) {
				rows = append(rows, notifier.StatusRow{
					Item: "Install postponed",
					Value: p.Warning("%s (since %s)", postponed.Version,
						time.UnixMilli(postponed.PostponedAt).Format(time.RFC822)),
				})
			}

			notifier.CreateStatusTable("", rows)
			return nil
		},
	}
	return cmd
}
