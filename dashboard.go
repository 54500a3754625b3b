// Package teamwatch composes the live team activity dashboard and its fixture
// backend.
package teamwatch

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/teamwatch/core"
	"pkt.systems/teamwatch/httpapi"
	"pkt.systems/teamwatch/internal/command"
	"pkt.systems/teamwatch/internal/feedclient"
	"pkt.systems/teamwatch/internal/logx"
	"pkt.systems/teamwatch/internal/metrics"
	"pkt.systems/teamwatch/internal/render"
	"pkt.systems/teamwatch/internal/stream"
	"pkt.systems/teamwatch/schema"
)

// Dashboard runs the controller, the push stream and the optional metrics
// endpoint and command reader.
type Dashboard interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// DashboardConfig configures the compositor.
type DashboardConfig struct {
	Client      feedclient.Options
	Filter      schema.FilterState
	MetricsAddr string
}

// DashboardDeps captures collaborators. Fetcher and Transport default to a
// feedclient built from DashboardConfig.Client.
type DashboardDeps struct {
	Presenter render.Presenter
	Fetcher   core.Fetcher
	Transport stream.Transport
	Metrics   *metrics.Metrics
	// ReconnectDelay overrides stream.ReconnectDelay.
	ReconnectDelay time.Duration
}

// DashboardOption toggles compositor components.
type DashboardOption func(*dashboardOptions)

type dashboardOptions struct {
	enableStream  bool
	enableMetrics bool
	input         io.Reader
}

// WithStream enables the live push stream.
func WithStream() DashboardOption {
	return func(o *dashboardOptions) { o.enableStream = true }
}

// WithMetrics serves Prometheus metrics on DashboardConfig.MetricsAddr.
func WithMetrics() DashboardOption {
	return func(o *dashboardOptions) { o.enableMetrics = true }
}

// WithCommands reads slash commands from r.
func WithCommands(r io.Reader) DashboardOption {
	return func(o *dashboardOptions) { o.input = r }
}

// NewDashboard constructs a dashboard.
func NewDashboard(cfg DashboardConfig, deps DashboardDeps, opts ...DashboardOption) (Dashboard, error) {
	options := dashboardOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if deps.Presenter == nil {
		return nil, errors.New("presenter is required")
	}
	if options.enableMetrics && strings.TrimSpace(cfg.MetricsAddr) == "" {
		return nil, errors.New("metrics address is required")
	}
	if deps.Fetcher == nil || (options.enableStream && deps.Transport == nil) {
		client, err := feedclient.New(cfg.Client)
		if err != nil {
			return nil, err
		}
		if deps.Fetcher == nil {
			deps.Fetcher = client
		}
		if deps.Transport == nil {
			deps.Transport = stream.TransportFunc(client.OpenStream)
		}
		if cfg.Client.ClientID == "" {
			cfg.Client.ClientID = client.ClientID()
		}
		cfg.Client.BaseURL = client.BaseURL()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	return &dashboard{cfg: cfg, deps: deps, options: options}, nil
}

type dashboard struct {
	cfg     DashboardConfig
	deps    DashboardDeps
	options dashboardOptions

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	errCh      chan error
	started    bool
	controller *core.Controller
	workers    sync.WaitGroup
	logger     pslog.Logger
}

func (d *dashboard) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		pslog.Ctx(ctx).Warn("dashboard start rejected", "reason", "already started")
		return errors.New("dashboard already started")
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.errCh = make(chan error, 2)
	d.started = true
	d.logger = logx.WithClient(ctx, d.cfg.Client.ClientID)
	d.ctx = logx.ContextWithClientLogger(d.ctx, d.logger, d.cfg.Client.ClientID)
	runCtx := d.ctx
	d.mu.Unlock()

	log := d.logger
	controller, err := core.NewController(d.cfg.Filter, core.ControllerDeps{
		Fetcher:  d.deps.Fetcher,
		Sink:     d.deps.Presenter,
		Observer: d.deps.Metrics,
		Logger:   log,
	})
	if err != nil {
		d.cancel()
		return err
	}
	d.mu.Lock()
	d.controller = controller
	d.mu.Unlock()

	log.Info(
		"dashboard start",
		"server", d.cfg.Client.BaseURL,
		"stream", d.options.enableStream,
		"metrics_addr", d.cfg.MetricsAddr,
		"commands", d.options.input != nil,
	)
	d.spawn(func() { _ = controller.Run(runCtx) })
	d.spawn(func() {
		if err := controller.Load(runCtx); err != nil && runCtx.Err() == nil {
			log.Warn("initial load failed", "err", err)
		}
	})
	if d.options.enableStream {
		session, err := stream.NewSession(stream.Options{
			Transport: d.deps.Transport,
			Handler:   controller,
			Observer:  d.deps.Metrics,
			Logger:    log,
			Delay:     d.deps.ReconnectDelay,
		})
		if err != nil {
			d.cancel()
			return err
		}
		d.spawn(func() { _ = session.Run(runCtx) })
	}
	if d.options.enableMetrics {
		go func() {
			if err := httpapi.ListenAndServe(runCtx, d.cfg.MetricsAddr, d.deps.Metrics.Handler()); err != nil {
				log.Error("metrics server failed", "err", err)
				d.errCh <- err
			}
		}()
	}
	if d.options.input != nil {
		handler := command.NewHandler(controller, d.deps.Presenter, log)
		// not tracked by workers: a blocked read on stdin cannot be interrupted
		go readCommands(runCtx, d.options.input, handler, d.deps.Presenter)
	}
	return nil
}

func (d *dashboard) spawn(fn func()) {
	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		fn()
	}()
}

func (d *dashboard) Wait() error {
	d.mu.Lock()
	ctx := d.ctx
	errCh := d.errCh
	started := d.started
	d.mu.Unlock()
	if !started {
		return errors.New("dashboard not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("dashboard stopped", "err", err)
			_ = d.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (d *dashboard) Stop(ctx context.Context) error {
	d.mu.Lock()
	cancel := d.cancel
	started := d.started
	log := d.logger
	d.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("dashboard stop requested")
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	stopped := make(chan struct{})
	go func() {
		d.workers.Wait()
		close(stopped)
	}()
	select {
	case <-ctx.Done():
		log.Warn("dashboard stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-stopped:
		log.Info("dashboard stopped")
		return nil
	}
}

// readCommands feeds input lines to the command handler until EOF or ctx ends.
func readCommands(ctx context.Context, input io.Reader, handler *command.Handler, out render.Presenter) {
	log := pslog.Ctx(ctx)
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		handled, err := handler.Handle(ctx, line)
		if err != nil {
			out.Notice("%v", err)
			continue
		}
		if !handled {
			out.Notice("not a command: %q (try /help)", line)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Debug("command input closed", "err", err)
	}
}

// Snapshot performs a single initial load, renders it once and returns.
func Snapshot(ctx context.Context, filter schema.FilterState, fetcher core.Fetcher, presenter render.Presenter) error {
	if fetcher == nil {
		return errors.New("fetcher is required")
	}
	if presenter == nil {
		return errors.New("presenter is required")
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	controller, err := core.NewController(filter, core.ControllerDeps{
		Fetcher: fetcher,
		Sink:    presenter,
		Logger:  pslog.Ctx(ctx),
	})
	if err != nil {
		return err
	}
	go func() { _ = controller.Run(runCtx) }()
	err = controller.Load(runCtx)
	cancel()
	<-controller.Done()
	return err
}
