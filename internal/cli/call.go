package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Wyydra/safemeet/internal/client"
	"github.com/Wyydra/safemeet/internal/core/domain"
	"github.com/Wyydra/safemeet/internal/core/negotiation"
)

func NewCallCmd(deps *Dependencies) *cobra.Command {
	var mic, noCamera, endOnExit bool

	cmd := &cobra.Command{
		Use:   "call CODE",
		Short: "Join a meeting's call with synthetic media",
		Long:  "Join the meeting over the lifecycle API, then negotiate a peer connection through the relay.\nMedia is synthetic. Ctrl+C leaves the call.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCall(ctx, deps, args[0], callOptions{
				mic:       mic,
				camera:    !noCamera,
				endOnExit: endOnExit,
			})
		},
	}

	cmd.Flags().BoolVar(&mic, "mic", false, "Start with the microphone on")
	cmd.Flags().BoolVar(&noCamera, "no-camera", false, "Start with the camera off")
	cmd.Flags().BoolVar(&endOnExit, "end", false, "End the meeting for everyone on exit (creator only)")

	return cmd
}

type callOptions struct {
	mic       bool
	camera    bool
	endOnExit bool
}

func runCall(ctx context.Context, deps *Dependencies, code string, opts callOptions) error {
	api := deps.api()
	cfg := deps.Config

	m, err := api.Join(ctx, code, cfg.UserID, cfg.UserName)
	if client.IsCapacity(err) {
		return fmt.Errorf("%s already has two participants", code)
	}
	if err != nil {
		return err
	}

	relayURL, err := api.RelayURL()
	if err != nil {
		return err
	}

	sess := client.NewSession(client.Options{
		MeetCode: domain.NormalizeMeetCode(m.MeetCode),
		UserID:   domain.UserID(cfg.UserID),
		Devices:  client.SyntheticDevices{},
		NewPeer:  client.NewPionPeerFactory(cfg.STUNServers),
		Relay:    client.WSDialer{URL: relayURL},
		Observer: deps.Out.State,
	})
	if err := sess.Start(ctx); err != nil {
		return errors.Join(err, sess.End())
	}
	sess.SetMicrophone(opts.mic)
	sess.SetCamera(opts.camera)

	select {
	case <-ctx.Done():
	case <-sess.Done():
	}
	last, status := sess.State(), sess.Status()
	endErr := sess.End()

	if opts.endOnExit && m.CreatedByUserID == cfg.UserID && last != negotiation.Ended {
		if _, err := api.End(context.WithoutCancel(ctx), m.ID); err != nil {
			endErr = errors.Join(endErr, fmt.Errorf("end meeting: %w", err))
		} else {
			deps.Out.Success("Ended " + m.MeetCode)
		}
	}

	if status == client.StatusMeetingEnded {
		deps.Out.Info("The meeting was ended")
	}
	return endErr
}
