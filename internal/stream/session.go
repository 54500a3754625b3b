// Package stream maintains the push connection to the backend event stream.
package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/teamwatch/internal/logx"
	"pkt.systems/teamwatch/internal/sse"
	"pkt.systems/teamwatch/schema"
)

// ReconnectDelay is the fixed pause between a disconnect and the next dial.
const ReconnectDelay = 3 * time.Second

// Discard reasons reported to Observer.MessageDiscarded.
const (
	DiscardMalformed = "malformed"
	DiscardMissingID = "missing_id"
	DiscardEventType = "event_type"
)

// Transport opens one stream connection. lastID is the largest event id decoded
// so far, 0 on the first dial.
type Transport interface {
	Dial(ctx context.Context, lastID schema.EventID) (io.ReadCloser, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, lastID schema.EventID) (io.ReadCloser, error)

// Dial implements Transport.
func (f TransportFunc) Dial(ctx context.Context, lastID schema.EventID) (io.ReadCloser, error) {
	return f(ctx, lastID)
}

// Handler receives connection state changes and decoded events on the session
// goroutine. Implementations must not block for long.
type Handler interface {
	OnState(schema.ConnState)
	OnEvent(schema.Event)
}

// Observer receives session counters.
type Observer interface {
	Reconnected()
	MessageDiscarded(reason string)
}

type noopObserver struct{}

func (noopObserver) Reconnected()            {}
func (noopObserver) MessageDiscarded(string) {}

// Options configures a Session.
type Options struct {
	Transport Transport
	Handler   Handler
	Observer  Observer
	Logger    pslog.Logger
	// Delay overrides ReconnectDelay.
	Delay time.Duration
	// After overrides time.After for the reconnect timer.
	After func(time.Duration) <-chan time.Time
}

// Session runs the Connecting, Open, Disconnected cycle until its context ends.
// Only one connection is alive at a time and at most one reconnect timer is
// pending.
type Session struct {
	transport Transport
	handler   Handler
	observer  Observer
	logger    pslog.Logger
	delay     time.Duration
	after     func(time.Duration) <-chan time.Time

	lastID atomic.Int64
	state  atomic.Int32
	opens  int
}

// NewSession validates opts and builds a session.
func NewSession(opts Options) (*Session, error) {
	if opts.Transport == nil {
		return nil, errors.New("stream transport is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("stream handler is required")
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = pslog.Ctx(context.Background())
	}
	if opts.Delay <= 0 {
		opts.Delay = ReconnectDelay
	}
	if opts.After == nil {
		opts.After = time.After
	}
	s := &Session{
		transport: opts.Transport,
		handler:   opts.Handler,
		observer:  opts.Observer,
		logger:    opts.Logger,
		delay:     opts.Delay,
		after:     opts.After,
	}
	s.state.Store(int32(schema.ConnConnecting))
	return s, nil
}

// LastEventID returns the largest event id decoded from the stream.
func (s *Session) LastEventID() schema.EventID {
	return schema.EventID(s.lastID.Load())
}

// State returns the current connection state.
func (s *Session) State() schema.ConnState {
	return schema.ConnState(s.state.Load())
}

// Run connects and reconnects until ctx is cancelled. It always returns nil
// after cancellation; transport failures are never fatal.
func (s *Session) Run(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		log := logx.WithAttempt(s.logger, attempt, 0)
		s.setState(schema.ConnConnecting)
		body, err := s.transport.Dial(ctx, s.LastEventID())
		if ctx.Err() != nil {
			if body != nil {
				body.Close()
			}
			return nil
		}
		if err != nil {
			log.Warn("stream dial failed", "err", err)
		} else {
			s.opens++
			if s.opens > 1 {
				s.observer.Reconnected()
			}
			s.setState(schema.ConnOpen)
			log.Info("stream open", "last_event_id", int64(s.LastEventID()))
			err = s.consume(ctx, body)
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				log.Warn("stream closed", "err", err)
			} else {
				log.Info("stream closed by remote")
			}
		}
		// The body is closed before the state change so nothing from the old
		// connection can be delivered once a reconnect is pending.
		s.setState(schema.ConnDisconnected)
		logx.WithAttempt(s.logger, attempt+1, s.delay).Debug("stream reconnect scheduled")
		select {
		case <-ctx.Done():
			return nil
		case <-s.after(s.delay):
		}
	}
}

func (s *Session) setState(state schema.ConnState) {
	if schema.ConnState(s.state.Swap(int32(state))) == state {
		return
	}
	s.handler.OnState(state)
}

// consume reads messages until the body ends, then closes it.
func (s *Session) consume(ctx context.Context, body io.ReadCloser) error {
	var once sync.Once
	closeBody := func() { once.Do(func() { _ = body.Close() }) }
	stop := context.AfterFunc(ctx, closeBody)
	defer func() {
		stop()
		closeBody()
	}()

	reader := sse.NewReader(body)
	for reader.Next() {
		s.handle(reader.Message())
	}
	return reader.Err()
}

func (s *Session) handle(msg sse.Message) {
	if msg.Type != "" && msg.Type != "message" {
		s.observer.MessageDiscarded(DiscardEventType)
		s.logger.Debug("stream message ignored", "event_type", msg.Type)
		return
	}
	if strings.TrimSpace(msg.Data) == "" {
		return
	}
	event, err := schema.DecodeEvent([]byte(msg.Data))
	if err != nil {
		reason := DiscardMalformed
		if errors.Is(err, schema.ErrMissingEventID) {
			reason = DiscardMissingID
		}
		s.observer.MessageDiscarded(reason)
		s.logger.Debug("stream message discarded", "reason", reason, "err", err)
		return
	}
	if int64(event.ID) > s.lastID.Load() {
		s.lastID.Store(int64(event.ID))
	}
	logx.WithEvent(s.logger, event).Trace("stream event received")
	s.handler.OnEvent(event)
}
