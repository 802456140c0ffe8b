package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Wyydra/safemeet/internal/client"
)

func NewCreateCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a meeting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := deps.api().Create(cmd.Context(), deps.Config.UserID, deps.Config.UserName)
			if err != nil {
				return err
			}
			deps.Out.Meeting(m)
			deps.Out.Info(fmt.Sprintf("Share %s, then run 'safemeet call %s'", m.MeetCode, m.MeetCode))
			return nil
		},
	}
}

func NewGetCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "get CODE",
		Short: "Show a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := deps.api().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			deps.Out.Meeting(m)
			return nil
		},
	}
}

func NewJoinCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "join CODE",
		Short: "Record yourself as a participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := deps.api().Join(cmd.Context(), args[0], deps.Config.UserID, deps.Config.UserName)
			if client.IsCapacity(err) {
				return fmt.Errorf("%s already has two participants", args[0])
			}
			if err != nil {
				return err
			}
			deps.Out.Success("Joined " + m.MeetCode)
			deps.Out.Meeting(m)
			return nil
		},
	}
}

func NewEndCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "end ID",
		Short: "End a meeting for everyone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := deps.api().End(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			deps.Out.Success("Ended " + m.MeetCode)
			return nil
		},
	}
}
