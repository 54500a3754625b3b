package teamwatch

import (
	"context"
	"errors"
	"net"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/teamwatch/httpapi"
	"pkt.systems/teamwatch/internal/eventbus"
	"pkt.systems/teamwatch/internal/feedstore"
	"pkt.systems/teamwatch/internal/synth"
)

// FixtureConfig configures the fixture backend.
type FixtureConfig struct {
	HTTP  httpapi.Config
	Synth synth.Options
	// Generate enables the synthetic event generator.
	Generate bool
	// StatePath persists the event log across restarts when set.
	StatePath string
	Retain    int
}

// Fixture serves the feed API from memory, optionally fed by a generator.
type Fixture struct {
	cfg   FixtureConfig
	store *feedstore.Store
	bus   *eventbus.Bus
	api   *httpapi.Server

	mu     sync.Mutex
	cancel context.CancelFunc
	errCh  chan error
	done   sync.WaitGroup
	addr   net.Addr
}

// NewFixture constructs a fixture backend.
func NewFixture(cfg FixtureConfig, logger pslog.Logger) *Fixture {
	store := feedstore.New(feedstore.Options{Retain: cfg.Retain, Logger: logger})
	bus := eventbus.New(logger)
	return &Fixture{
		cfg:   cfg,
		store: store,
		bus:   bus,
		api:   httpapi.NewServer(cfg.HTTP, store, bus),
	}
}

// Store exposes the event log, mainly for seeding.
func (f *Fixture) Store() *feedstore.Store { return f.store }

// Bus exposes the live fan-out.
func (f *Fixture) Bus() *eventbus.Bus { return f.bus }

// Addr returns the bound listen address once started.
func (f *Fixture) Addr() net.Addr {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addr
}

// Start binds the listener and starts serving.
func (f *Fixture) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return errors.New("fixture already started")
	}
	log := pslog.Ctx(ctx)
	if f.cfg.StatePath != "" {
		if _, err := f.store.Load(f.cfg.StatePath); err != nil {
			return err
		}
	}
	ln, err := net.Listen("tcp", f.cfg.HTTP.Addr)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.errCh = make(chan error, 1)
	f.addr = ln.Addr()
	log.Info("fixture listening", "addr", ln.Addr().String(), "generate", f.cfg.Generate, "drop_every", f.cfg.HTTP.DropEvery)

	f.done.Add(1)
	go func() {
		defer f.done.Done()
		if err := httpapi.Serve(runCtx, ln, f.api.Handler()); err != nil {
			log.Error("fixture server failed", "err", err)
			f.errCh <- err
		}
	}()
	if f.cfg.Generate {
		opts := f.cfg.Synth
		if opts.Logger == nil {
			opts.Logger = log
		}
		gen := synth.New(opts)
		f.done.Add(1)
		go func() {
			defer f.done.Done()
			_ = gen.Run(runCtx, f.store, f.bus)
		}()
	}
	return nil
}

// Wait blocks until ctx ends or the server fails.
func (f *Fixture) Wait(ctx context.Context) error {
	f.mu.Lock()
	errCh := f.errCh
	f.mu.Unlock()
	if errCh == nil {
		return errors.New("fixture not started")
	}
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop cancels serving and generation, then persists state if configured.
func (f *Fixture) Stop() error {
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	f.done.Wait()
	if f.cfg.StatePath != "" {
		return f.store.Save(f.cfg.StatePath)
	}
	return nil
}
