package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"aw-watcher-mpv/internal/agent"
	"aw-watcher-mpv/internal/agent/version"
	"aw-watcher-mpv/internal/config"
	"aw-watcher-mpv/internal/logging"
	"aw-watcher-mpv/internal/mpv"
)

type rootOptions struct {
	configPath string
	socket     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   config.AgentName,
		Short: "Report mpv playback to ActivityWatch",
		Long: `aw-watcher-mpv connects to mpv's JSON IPC socket and posts a heartbeat
to ActivityWatch every poll_time seconds while something is playing.

Start mpv with --input-ipc-server=/tmp/mpvsocket, then:
  aw-watcher-mpv --socket /tmp/mpvsocket`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatcher(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: <mpv config dir>/script-opts/aw-watcher-mpv.json)")
	cmd.Flags().StringVar(&opts.socket, "socket", "", "mpv IPC socket path, overrides the config file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level (no, fatal, error, warn, info, debug)")

	cmd.AddCommand(newVersionCmd(opts))
	return cmd
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(config.AgentName, opts.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if s := strings.TrimSpace(opts.socket); s != "" {
		cfg.Socket = s
	}
	if l := strings.TrimSpace(opts.logLevel); l != "" {
		cfg.LogLevel = strings.ToLower(l)
	}
	return cfg, nil
}

func runWatcher(ctx context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, closer := logging.Build(cfg, config.AgentName)
	defer func() { _ = closer.Close() }()

	host, err := mpv.Dial(ctx, cfg.Socket, logger)
	if err != nil {
		logging.Fatal(logger, "mpv connection failed", "error", err)
		return err
	}

	a, err := agent.New(ctx, cfg, host, logger)
	if err != nil {
		_ = host.Close()
		logger.Error("agent initialization failed", "error", err)
		return err
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("agent runtime failed", "error", err)
		return err
	}
	return nil
}

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and effective config location",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(version.Get(cfg), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}
