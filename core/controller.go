package core

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"pkt.systems/pslog"
	"pkt.systems/teamwatch/internal/logx"
	"pkt.systems/teamwatch/schema"
)

// ErrControllerStopped is returned when a request reaches a controller whose loop
// has exited.
var ErrControllerStopped = errors.New("controller stopped")

const inboxDepth = 256

// Controller owns the dashboard view: the event store, the rate window, the
// active filter and the connection state. Every mutation runs on the goroutine
// executing Run; other goroutines post closures to it, so the view itself needs
// no locking. Asynchronous fetch continuations re-read state when they run.
type Controller struct {
	fetcher  Fetcher
	sink     Sink
	observer Observer
	logger   pslog.Logger
	now      func() time.Time

	inbox chan func()
	done  chan struct{}

	// Loop-owned state below.
	runCtx   context.Context
	filter   schema.FilterState
	store    *EventStore
	window   *RateWindow
	conn     schema.ConnState
	opened   bool
	agents   []schema.AgentSummary
	server   schema.ServerStats
	stats    schema.AggregateSnapshot

	// eventsSeq numbers events fetches; eventsApplied is the newest one applied
	// under the current filter.
	eventsSeq     uint64
	eventsApplied uint64

	refreshSeq    uint64
	agentsApplied uint64
	statsApplied  uint64
}

// ViewState is a consistent copy of the controller's view.
type ViewState struct {
	Filter    schema.FilterState
	Events    []schema.Event
	HighWater schema.EventID
	Agents    []schema.AgentSummary
	Stats     schema.AggregateSnapshot
	Conn      schema.ConnState
}

// NewController constructs a controller with an initial filter.
func NewController(filter schema.FilterState, deps ControllerDeps) (*Controller, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	normalized, err := schema.NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	if deps.Sink == nil {
		deps.Sink = SinkFunc(nil)
	}
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = pslog.Ctx(context.Background())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	c := &Controller{
		fetcher:  deps.Fetcher,
		sink:     deps.Sink,
		observer: deps.Observer,
		logger:   deps.Logger,
		now:      deps.Now,
		inbox:    make(chan func(), inboxDepth),
		done:     make(chan struct{}),
		runCtx:   context.Background(),
		filter:   normalized,
		store:    NewEventStore(),
		window:   NewRateWindow(),
		conn:     schema.ConnConnecting,
	}
	c.stats = Snapshot(c.server, 0)
	return c, nil
}

// Run drains the controller inbox until ctx is cancelled. It must be called once.
func (c *Controller) Run(ctx context.Context) error {
	c.runCtx = ctx
	defer close(c.done)
	c.logger.Debug("controller loop started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("controller loop stopped")
			return nil
		case fn := <-c.inbox:
			fn()
		}
	}
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Load performs the initial load: events, agents and stats are fetched
// concurrently and a single full render is emitted with whatever succeeded.
// Failed fetches count as empty results.
func (c *Controller) Load(ctx context.Context) error {
	applied := make(chan struct{})
	if err := c.post(ctx, func() { c.startLoad(applied) }); err != nil {
		return err
	}
	select {
	case <-applied:
		return nil
	case <-c.done:
		return ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetFilter replaces the active filter and refetches the feed.
func (c *Controller) SetFilter(ctx context.Context, filter schema.FilterState) error {
	normalized, err := schema.NormalizeFilter(filter)
	if err != nil {
		return err
	}
	return c.post(ctx, func() { c.applyFilter(normalized) })
}

// UpdateFilter derives the next filter from the active one on the controller
// loop, applies it and returns it. An error from update leaves the filter as is.
func (c *Controller) UpdateFilter(ctx context.Context, update func(schema.FilterState) (schema.FilterState, error)) (schema.FilterState, error) {
	type result struct {
		filter schema.FilterState
		err    error
	}
	out := make(chan result, 1)
	if err := c.post(ctx, func() {
		next, err := update(c.filter)
		if err == nil {
			next, err = schema.NormalizeFilter(next)
		}
		if err != nil {
			out <- result{filter: c.filter, err: err}
			return
		}
		c.applyFilter(next)
		out <- result{filter: next}
	}); err != nil {
		return schema.FilterState{}, err
	}
	select {
	case res := <-out:
		return res.filter, res.err
	case <-c.done:
		return schema.FilterState{}, ErrControllerStopped
	case <-ctx.Done():
		return schema.FilterState{}, ctx.Err()
	}
}

func (c *Controller) applyFilter(filter schema.FilterState) {
	if filter != c.filter {
		c.eventsApplied = 0
	}
	c.filter = filter
	logx.WithFilter(c.logger, filter).Info("filter changed")
	c.fetchEvents("filter")
}

// ClearFilter removes every filter constraint and refetches the feed.
func (c *Controller) ClearFilter(ctx context.Context) error {
	return c.SetFilter(ctx, schema.FilterState{})
}

// State returns a copy of the current view.
func (c *Controller) State(ctx context.Context) (ViewState, error) {
	out := make(chan ViewState, 1)
	if err := c.post(ctx, func() {
		out <- ViewState{
			Filter:    c.filter,
			Events:    c.store.Events(),
			HighWater: c.store.HighWater(),
			Agents:    append([]schema.AgentSummary(nil), c.agents...),
			Stats:     c.snapshot(),
			Conn:      c.conn,
		}
	}); err != nil {
		return ViewState{}, err
	}
	select {
	case state := <-out:
		return state, nil
	case <-c.done:
		return ViewState{}, ErrControllerStopped
	case <-ctx.Done():
		return ViewState{}, ctx.Err()
	}
}

// Detail returns the full event for id, including its payload. Displayed events
// that carry a payload are served locally; anything else is fetched.
func (c *Controller) Detail(ctx context.Context, id schema.EventID) (schema.Event, error) {
	type lookup struct {
		event schema.Event
		ok    bool
	}
	out := make(chan lookup, 1)
	if err := c.post(ctx, func() {
		event, ok := c.store.Get(id)
		out <- lookup{event: event, ok: ok && len(event.Payload) > 0}
	}); err != nil {
		return schema.Event{}, err
	}
	var found lookup
	select {
	case found = <-out:
	case <-c.done:
		return schema.Event{}, ErrControllerStopped
	case <-ctx.Done():
		return schema.Event{}, ctx.Err()
	}
	if found.ok {
		return found.event, nil
	}
	event, err := c.fetcher.Event(ctx, id)
	c.observer.FetchCompleted("event", err)
	return event, err
}

// OnEvent implements the stream handler: it queues a decoded push event.
func (c *Controller) OnEvent(event schema.Event) {
	arrived := c.now()
	_ = c.post(context.Background(), func() { c.handleEvent(event, arrived) })
}

// OnState implements the stream handler: it queues a connection state change.
func (c *Controller) OnState(state schema.ConnState) {
	_ = c.post(context.Background(), func() { c.handleState(state) })
}

func (c *Controller) post(ctx context.Context, fn func()) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-c.done:
		return ErrControllerStopped
	default:
	}
	select {
	case c.inbox <- fn:
		return nil
	case <-c.done:
		return ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) handleEvent(event schema.Event, arrived time.Time) {
	log := logx.WithEvent(c.logger, event)
	switch {
	case !Matches(event, c.filter):
		c.observer.EventReceived(EventFiltered)
		log.Trace("stream event filtered")
	case !c.store.Prepend(event):
		c.observer.EventReceived(EventDuplicate)
		log.Trace("stream event already seen", "high_water", int64(c.store.HighWater()))
	default:
		c.window.Record(arrived)
		c.observer.EventReceived(EventAdmitted)
		log.Trace("stream event admitted")
		c.sink.Render(Instruction{
			Kind:   IncrementalEventAppend,
			Event:  event,
			Stats:  c.snapshot(),
			Filter: c.filter,
		})
	}
	c.refreshSummary()
}

func (c *Controller) handleState(state schema.ConnState) {
	if state == c.conn {
		return
	}
	c.conn = state
	c.observer.ConnState(state)
	c.logger.Debug("connection state changed", "state", state.String())
	c.sink.Render(Instruction{Kind: ConnectionStatusChanged, State: state})
	if state != schema.ConnOpen {
		return
	}
	if c.opened {
		c.fetchEvents("reconnect")
		c.refreshSummary()
	}
	c.opened = true
}

// startLoad runs on the loop; the fetches run on their own goroutines.
func (c *Controller) startLoad(applied chan struct{}) {
	ctx := c.runCtx
	filter := c.filter
	gen := c.nextEventSeq()
	seq := c.nextRefreshSeq()
	log := logx.WithFilter(c.logger, filter)
	go func() {
		var (
			events []schema.Event
			agents []schema.AgentSummary
			stats  schema.ServerStats
		)
		// The closures never return an error so one failed fetch does not
		// cancel the others; failures just leave that part empty.
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			result, err := c.fetcher.Events(gctx, filter, MaxEvents)
			c.observer.FetchCompleted("events", err)
			if err != nil {
				log.Debug("initial events fetch failed", "err", err)
				return nil
			}
			events = result
			return nil
		})
		g.Go(func() error {
			result, err := c.fetcher.Agents(gctx)
			c.observer.FetchCompleted("agents", err)
			if err != nil {
				log.Debug("initial agents fetch failed", "err", err)
				return nil
			}
			agents = result
			return nil
		})
		g.Go(func() error {
			result, err := c.fetcher.Stats(gctx)
			c.observer.FetchCompleted("stats", err)
			if err != nil {
				log.Debug("initial stats fetch failed", "err", err)
				return nil
			}
			stats = result
			return nil
		})
		_ = g.Wait()
		_ = c.post(ctx, func() {
			defer close(applied)
			c.applyAgents(seq, agents, false)
			c.applyStats(seq, stats, false)
			if !c.applyEvents(filter, gen, events) {
				c.renderFull()
			}
			log.Info("initial load complete", "events", c.store.Len(), "agents", len(c.agents))
		})
	}()
}

// fetchEvents issues an events fetch tagged with the current filter and a
// sequence number.
func (c *Controller) fetchEvents(reason string) {
	ctx := c.runCtx
	filter := c.filter
	gen := c.nextEventSeq()
	log := logx.WithFilter(c.logger, filter).With("reason", reason, "generation", gen)
	log.Debug("events fetch start")
	go func() {
		events, err := c.fetcher.Events(ctx, filter, MaxEvents)
		c.observer.FetchCompleted("events", err)
		if err != nil {
			log.Debug("events fetch failed", "err", err)
			return
		}
		_ = c.post(ctx, func() { c.applyEvents(filter, gen, events) })
	}()
}

// applyEvents replaces the store with a fetched page and emits a full render.
// A response is discarded when it was issued for another filter or when a later
// fetch for the same filter has already been applied. Events admitted from the
// stream after the fetch was issued that are newer than the page and still
// match the filter are carried over.
func (c *Controller) applyEvents(issued schema.FilterState, gen uint64, fetched []schema.Event) bool {
	if issued != c.filter || gen < c.eventsApplied {
		c.observer.StaleResponse("events")
		logx.WithFilter(c.logger, issued).Debug("events response discarded", "generation", gen, "applied", c.eventsApplied)
		return false
	}
	c.eventsApplied = gen
	page := FilterEvents(fetched, c.filter)
	var newest schema.EventID
	for _, event := range page {
		if event.ID > newest {
			newest = event.ID
		}
	}
	for _, event := range c.store.Events() {
		if event.ID > newest && Matches(event, c.filter) {
			page = append(page, event)
		}
	}
	c.store.ReplaceAll(page)
	c.renderFull()
	return true
}

// refreshSummary refetches agents and stats in the background. Failures are
// dropped; the next event triggers another attempt.
func (c *Controller) refreshSummary() {
	ctx := c.runCtx
	seq := c.nextRefreshSeq()
	go func() {
		agents, err := c.fetcher.Agents(ctx)
		c.observer.FetchCompleted("agents", err)
		if err != nil {
			c.logger.Debug("agents refresh failed", "err", err)
			return
		}
		_ = c.post(ctx, func() { c.applyAgents(seq, agents, true) })
	}()
	go func() {
		stats, err := c.fetcher.Stats(ctx)
		c.observer.FetchCompleted("stats", err)
		if err != nil {
			c.logger.Debug("stats refresh failed", "err", err)
			return
		}
		_ = c.post(ctx, func() { c.applyStats(seq, stats, true) })
	}()
}

func (c *Controller) applyAgents(seq uint64, agents []schema.AgentSummary, render bool) {
	if seq < c.agentsApplied {
		c.observer.StaleResponse("agents")
		return
	}
	c.agentsApplied = seq
	c.agents = agents
	if render {
		c.renderSummary()
	}
}

func (c *Controller) applyStats(seq uint64, stats schema.ServerStats, render bool) {
	if seq < c.statsApplied {
		c.observer.StaleResponse("stats")
		return
	}
	c.statsApplied = seq
	c.server = stats
	if render {
		c.renderSummary()
	}
}

func (c *Controller) snapshot() schema.AggregateSnapshot {
	rate := c.window.Count(c.now())
	c.stats = Snapshot(c.server, rate)
	c.observer.Rate(c.stats.EventsPerMinute)
	return c.stats
}

func (c *Controller) renderFull() {
	c.sink.Render(Instruction{
		Kind:   FullRender,
		Events: c.store.Events(),
		Agents: append([]schema.AgentSummary(nil), c.agents...),
		Stats:  c.snapshot(),
		State:  c.conn,
		Filter: c.filter,
	})
}

func (c *Controller) renderSummary() {
	c.sink.Render(Instruction{
		Kind:   SummaryUpdate,
		Agents: append([]schema.AgentSummary(nil), c.agents...),
		Stats:  c.snapshot(),
		Filter: c.filter,
	})
}

func (c *Controller) nextEventSeq() uint64 {
	c.eventsSeq++
	return c.eventsSeq
}

func (c *Controller) nextRefreshSeq() uint64 {
	c.refreshSeq++
	return c.refreshSeq
}
