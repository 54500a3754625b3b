package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/teamwatch"
	"pkt.systems/teamwatch/internal/appconfig"
	"pkt.systems/teamwatch/internal/feedclient"
	"pkt.systems/teamwatch/internal/render"
	"pkt.systems/teamwatch/schema"
)

const stopTimeout = 5 * time.Second

// clientFlags are shared by the commands that talk to a backend.
type clientFlags struct {
	cfgPath  string
	server   string
	category string
	agent    string
	tool     string
	format   string
	rows     int
}

func (f *clientFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.cfgPath, "config", "c", "", "config path (default ~/.teamwatch/config.yaml)")
	cmd.Flags().StringVar(&f.server, "server", "", "backend base URL")
	cmd.Flags().StringVar(&f.category, "category", "", "filter by category (communication, task_management, tool_use, lifecycle)")
	cmd.Flags().StringVar(&f.agent, "agent", "", "filter by agent name")
	cmd.Flags().StringVar(&f.tool, "tool", "", "filter by tool name")
	cmd.Flags().StringVar(&f.format, "format", "", "output format: auto, color, plain or json")
	cmd.Flags().IntVar(&f.rows, "rows", 0, "feed rows shown on a full render (-1 for all)")
}

// load reads the config file and applies the flags the user set explicitly.
func (f *clientFlags) load(cmd *cobra.Command) (appconfig.Config, error) {
	cfg, err := appconfig.Load(f.cfgPath)
	if err != nil {
		return appconfig.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.Server.BaseURL = f.server
	}
	if flags.Changed("category") {
		cfg.Filter.Category = f.category
	}
	if flags.Changed("agent") {
		cfg.Filter.Agent = f.agent
	}
	if flags.Changed("tool") {
		cfg.Filter.Tool = f.tool
	}
	if flags.Changed("format") {
		cfg.Render.Format = f.format
	}
	if flags.Changed("rows") {
		cfg.Render.Rows = f.rows
	}
	if err := appconfig.Validate(cfg); err != nil {
		return appconfig.Config{}, err
	}
	return cfg, nil
}

func clientOptions(cfg appconfig.Config) feedclient.Options {
	return feedclient.Options{
		BaseURL: cfg.Server.BaseURL,
		Timeout: cfg.Server.RequestTimeout(),
	}
}

func presenterFor(cmd *cobra.Command, cfg appconfig.Config) (render.Presenter, error) {
	format, err := render.ParseFormat(cfg.Render.Format)
	if err != nil {
		return nil, err
	}
	return render.New(format, cmd.OutOrStdout(), cfg.Render.Rows), nil
}

func newWatchCmd() *cobra.Command {
	var flags clientFlags
	var metricsAddr string
	var noInput bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Load the feed and follow it live",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}
			filter, err := cfg.FilterState()
			if err != nil {
				return err
			}
			presenter, err := presenterFor(cmd, cfg)
			if err != nil {
				return err
			}
			opts := []teamwatch.DashboardOption{teamwatch.WithStream()}
			if cfg.Metrics.Addr != "" {
				opts = append(opts, teamwatch.WithMetrics())
			}
			if !noInput {
				opts = append(opts, teamwatch.WithCommands(cmd.InOrStdin()))
			}
			dash, err := teamwatch.NewDashboard(teamwatch.DashboardConfig{
				Client:      clientOptions(cfg),
				Filter:      filter,
				MetricsAddr: cfg.Metrics.Addr,
			}, teamwatch.DashboardDeps{Presenter: presenter}, opts...)
			if err != nil {
				return err
			}
			if err := dash.Start(cmd.Context()); err != nil {
				return err
			}
			waitErr := dash.Wait()
			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			if err := dash.Stop(stopCtx); err != nil {
				logger.Warn("dashboard stop failed", "err", err)
			}
			return waitErr
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&noInput, "no-input", false, "do not read commands from stdin")
	return cmd
}

func newSnapshotCmd() *cobra.Command {
	var flags clientFlags
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render the current feed once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			filter, err := cfg.FilterState()
			if err != nil {
				return err
			}
			presenter, err := presenterFor(cmd, cfg)
			if err != nil {
				return err
			}
			client, err := feedclient.New(clientOptions(cfg))
			if err != nil {
				return err
			}
			return teamwatch.Snapshot(cmd.Context(), filter, client, presenter)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newShowCmd() *cobra.Command {
	var flags clientFlags
	cmd := &cobra.Command{
		Use:   "show <event-id>",
		Short: "Print one event with its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid event id %q", args[0])
			}
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			presenter, err := presenterFor(cmd, cfg)
			if err != nil {
				return err
			}
			client, err := feedclient.New(clientOptions(cfg))
			if err != nil {
				return err
			}
			event, err := client.Event(cmd.Context(), schema.EventID(id))
			if err != nil {
				if errors.Is(err, schema.ErrEventNotFound) {
					return fmt.Errorf("event #%d not found", id)
				}
				return err
			}
			presenter.Detail(event)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}
