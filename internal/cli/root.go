package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Wyydra/safemeet/internal/client"
)

type Dependencies struct {
	Config *Config
	Out    *Formatter
}

func (d *Dependencies) api() *client.LifecycleClient {
	return client.NewLifecycleClient(d.Config.ServerURL)
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "safemeet",
		Short:         "Create, join and call SafeMeet meetings",
		Long:          "A participant CLI for SafeMeet. It manages meetings over the lifecycle API and can run a headless call through the signaling relay.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var verbose bool
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log session events to stderr")
	flags.StringVar(&deps.Config.ServerURL, "server", deps.Config.ServerURL, "SafeMeet server base URL")
	flags.StringVar(&deps.Config.UserID, "user", deps.Config.UserID, "User ID to act as")
	flags.StringVar(&deps.Config.UserName, "name", deps.Config.UserName, "Display name")

	rootCmd.AddCommand(NewCreateCmd(deps))
	rootCmd.AddCommand(NewGetCmd(deps))
	rootCmd.AddCommand(NewJoinCmd(deps))
	rootCmd.AddCommand(NewEndCmd(deps))
	rootCmd.AddCommand(NewCallCmd(deps))

	return rootCmd
}
