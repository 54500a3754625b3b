package main

import (
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/teamwatch"
	"pkt.systems/teamwatch/httpapi"
	"pkt.systems/teamwatch/internal/appconfig"
	"pkt.systems/teamwatch/internal/synth"
)

func newFixtureCmd() *cobra.Command {
	var cfgPath string
	var addr string
	var basePath string
	var interval time.Duration
	var seed int64
	var dropEvery int
	var statePath string
	var agents []string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Serve a synthetic team activity feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Fixture.Addr = addr
			}
			if flags.Changed("interval") {
				cfg.Fixture.IntervalMS = int(interval / time.Millisecond)
			}
			if flags.Changed("seed") {
				cfg.Fixture.Seed = seed
			}
			if flags.Changed("drop-every") {
				cfg.Fixture.DropEvery = dropEvery
			}
			if err := appconfig.Validate(cfg); err != nil {
				return err
			}

			fx := teamwatch.NewFixture(teamwatch.FixtureConfig{
				HTTP: httpapi.Config{
					Addr:      cfg.Fixture.Addr,
					BasePath:  basePath,
					DropEvery: cfg.Fixture.DropEvery,
				},
				Synth: synth.Options{
					Seed:     cfg.Fixture.Seed,
					Interval: cfg.Fixture.Interval(),
					Agents:   agents,
				},
				Generate:  !quiet,
				StatePath: statePath,
			}, logger)
			if err := fx.Start(cmd.Context()); err != nil {
				return err
			}
			waitErr := fx.Wait(cmd.Context())
			if err := fx.Stop(); err != nil {
				logger.Warn("fixture stop failed", "err", err)
			}
			return waitErr
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config path (default ~/.teamwatch/config.yaml)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "", "serve the API under this path prefix")
	cmd.Flags().DurationVar(&interval, "interval", synth.DefaultInterval, "delay between generated events")
	cmd.Flags().Int64Var(&seed, "seed", 1, "generator seed")
	cmd.Flags().IntVar(&dropEvery, "drop-every", 0, "sever each stream after this many events (0 disables)")
	cmd.Flags().StringVar(&statePath, "state", "", "persist the event log to this file across restarts")
	cmd.Flags().StringSliceVar(&agents, "agents", nil, "agent names to simulate")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "serve without generating events")
	return cmd
}
