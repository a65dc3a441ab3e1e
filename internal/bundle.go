package internal

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tessapp/ota/internal/logger"
)

func NewApplyBundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply-bundle",
		Short: "Fetch and apply a code-bundle update",
		Long: `Fetch the bundle channel and reload if a new bundle arrived.

Examples:
  ota apply-bundle      # no-op when the running bundle is already current`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}

			applied, err := m.ApplyBundle(context.Background())
			if err != nil {
				return err
			}
			if !applied {
				logger.Info("Bundle is already current (%s)", m.CurrentBundleID())
				return nil
			}
			logger.Success("New bundle %s applied", m.CurrentBundleID())
			return nil
		},
	}
	return cmd
}
