package internal

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessapp/ota/internal/config"
	"github.com/tessapp/ota/internal/installer"
	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/prompter"
	"github.com/tessapp/ota/internal/publish"
	"github.com/tessapp/ota/internal/updater"
	"github.com/tessapp/ota/internal/version"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ota",
		Short: "Over-the-air update manager for the Tessa client",
		Long: `ota manages the Tessa client's self-update pipeline outside the app store:
it checks both update channels, downloads package artifacts, hands them to the
OS installer, and applies code-bundle updates instantly.`,
		Example: `ota check`,
		Run: func(cmd *cobra.Command, _ []string) {
			versionFlag, _ := cmd.Flags().GetBool("version")
			if versionFlag {
				version.PrintVersion()
				return
			}
			_ = cmd.Help()
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.ConfigureLoggerFromFlags()
		},
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.Flags().BoolP("version", "v", false, "Print version information")
	cmd.PersistentFlags().CountVarP(&logger.FlagVerboseCount, "verbose", "V", "Increase log verbosity")
	cmd.PersistentFlags().BoolVarP(&logger.FlagQuiet, "quiet", "q", false, "Errors only")
	cmd.PersistentFlags().BoolVar(&logger.FlagJSON, "json", false, "JSON log output")

	RegisterSubCommands(cmd)

	return cmd
}

func Execute() error {
	root := NewRootCmd()

	if err := root.Execute(); err != nil {
		logger.Debug("Failed to execute root command: %v", err)
		return err
	}
	return nil
}

// newManager builds the fully wired manager the commands share: loaded
// config, file-backed state, interactive grant and permission flows.
func newManager() (*updater.Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	p := prompter.New(os.Stdin, os.Stdout)
	m := updater.New(&cfg, nil, nil)
	m.WithPublisher(&publish.PromptedDirGrant{Dir: cfg.SharedDir, Prompter: p})
	m.WithInstaller(
		&installer.PromptedGate{KV: m.KV, Prompter: p},
		installer.DefaultStrategies(nil, cfg.InstallerTool, cfg.PackageMIME),
	)
	return m, nil
}
