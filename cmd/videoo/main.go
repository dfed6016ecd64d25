package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/martian56/videoo-call/internal/app"
	"github.com/martian56/videoo-call/internal/config"
	"github.com/martian56/videoo-call/internal/core"
	"github.com/martian56/videoo-call/internal/domain"
	"github.com/martian56/videoo-call/internal/rtc"
	"github.com/martian56/videoo-call/internal/signaling"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	root := &cobra.Command{
		Use:   "videoo",
		Short: "videoo is a full-mesh video meeting client",
	}

	var (
		name   string
		server string
	)

	join := &cobra.Command{
		Use:   "join <meeting-code>",
		Short: "Join a meeting and run until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(args[0], name, server)
		},
	}
	join.Flags().StringVarP(&name, "name", "n", "", "display name shown to other participants")
	join.Flags().StringVarP(&server, "server", "s", "", "meeting server base URL (ws:// or wss://)")
	root.AddCommand(join)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("exit")
		os.Exit(1)
	}
}

func runJoin(meetingCode, name, server string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if name != "" {
		cfg.DisplayName = name
	}
	if server != "" {
		cfg.ServerURL = server
	}

	self := domain.NewIdentity()
	url := fmt.Sprintf("%s/ws/%s/%s", cfg.ServerURL, meetingCode, self)

	channel := signaling.NewChannel(url, cfg.ReconnectDelay)
	engine := rtc.NewEngine(rtc.ConfigurationFor(cfg.ICEServers))
	devices := rtc.NewStaticDevices()

	orch := app.New(self, cfg.DisplayName, channel, engine, devices, core.RealClock(), app.Options{
		GraceWindow:     cfg.GraceWindow,
		RetryBase:       cfg.RetryBase,
		RetryCap:        cfg.RetryCap,
		CandidateBuffer: cfg.CandidateBuffer,
	})

	// Local camera/microphone must be up before joining; failing here is
	// fatal to the meeting, not silently degraded.
	if err := orch.AcquireMedia(); err != nil {
		return err
	}

	channel.OnEnvelope(orch.HandleEnvelope)
	channel.OnOpen(orch.HandleChannelOpen)
	channel.OnClosed(orch.HandleChannelClosed)

	if err := channel.Connect(ctx); err != nil {
		return err
	}
	defer channel.Close()

	log.Info().Str("meeting", meetingCode).Str("self", string(self)).Msg("joined meeting")
	orch.Run(ctx)
	log.Info().Msg("left meeting")
	return nil
}
