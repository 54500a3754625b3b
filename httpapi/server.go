package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/teamwatch/internal/eventbus"
	"pkt.systems/teamwatch/internal/feedstore"
	"pkt.systems/teamwatch/internal/sse"
	"pkt.systems/teamwatch/schema"
)

var errInvalidID = errors.New("invalid event id")

// Server serves the fixture feed API over a feedstore and an eventbus.
type Server struct {
	cfg   Config
	store *feedstore.Store
	bus   *eventbus.Bus
}

// NewServer constructs a fixture API server.
func NewServer(cfg Config, store *feedstore.Store, bus *eventbus.Bus) *Server {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	return &Server{cfg: cfg, store: store, bus: bus}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/events/{id}", s.handleEvent)
	mux.HandleFunc("GET /api/agents", s.handleAgents)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	return mount(s.cfg.BasePath, withRequestLogging(withCORS(mux)))
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

type eventsResponse struct {
	Events  []schema.Event `json:"events"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	Pages   int            `json:"pages"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	category, err := schema.ParseCategory(query.Get("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	filter := schema.FilterState{
		Category:  category,
		AgentName: strings.TrimSpace(query.Get("agent")),
		ToolName:  strings.TrimSpace(query.Get("tool")),
	}
	page := parseInt(query.Get("page"), 1)
	perPage := parseInt(query.Get("per_page"), DefaultPerPage)
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	events, total := s.store.Page(filter, page, perPage)
	// listings omit payloads; clients fetch /api/events/{id} for detail
	for i := range events {
		events[i].Payload = nil
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:  events,
		Total:   total,
		Page:    max(page, 1),
		PerPage: perPage,
		Pages:   (total + perPage - 1) / perPage,
	})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, errInvalidID)
		return
	}
	event, ok := s.store.Get(schema.EventID(id))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.store.Agents()})
}

type mostActive struct {
	AgentName  string `json:"agent_name"`
	EventCount int64  `json:"event_count"`
}

type statsResponse struct {
	TotalEvents      int64                     `json:"total_events"`
	EventsLastMinute int64                     `json:"events_last_minute"`
	MostActiveAgent  *mostActive               `json:"most_active_agent"`
	ByCategory       map[schema.Category]int64 `json:"by_category"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.store.Stats()
	resp := statsResponse{
		TotalEvents:      stats.TotalEvents,
		EventsLastMinute: stats.EventsLastMinute,
		ByCategory:       stats.ByCategory,
	}
	if stats.MostActiveAgent != "" {
		resp.MostActiveAgent = &mostActive{AgentName: stats.MostActiveAgent, EventCount: stats.MostActiveCount}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := pslog.Ctx(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// subscribe before replay so nothing appended in between is lost
	sub, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	lastID := schema.EventID(parseInt(r.Header.Get("Last-Event-ID"), 0))
	sent := 0
	severed := func() bool {
		return s.cfg.DropEvery > 0 && sent >= s.cfg.DropEvery
	}
	write := func(event schema.Event) error {
		if event.ID <= lastID {
			return nil
		}
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if err := sse.Write(w, sse.Message{ID: strconv.FormatInt(int64(event.ID), 10), Data: string(data)}); err != nil {
			return err
		}
		lastID = event.ID
		sent++
		return nil
	}

	replay := 0
	if lastID > 0 {
		for _, event := range s.store.After(lastID) {
			if err := write(event); err != nil {
				return
			}
			replay++
			if severed() {
				flusher.Flush()
				log.Info("http stream severed", "sent", sent)
				return
			}
		}
		flusher.Flush()
	}

	heartbeat := time.NewTicker(s.cfg.Heartbeat)
	defer heartbeat.Stop()
	log.Info("http stream opened", "last_id", int64(lastID), "replay", replay)
	for {
		select {
		case <-r.Context().Done():
			log.Info("http stream closed", "sent", sent)
			return
		case <-heartbeat.C:
			if err := sse.WriteComment(w, "heartbeat"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := write(event); err != nil {
				log.Debug("http stream write failed", "err", err)
				return
			}
			flusher.Flush()
			if severed() {
				log.Info("http stream severed", "sent", sent)
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parseInt(value string, fallback int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// Run serves the API on cfg.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return ListenAndServe(ctx, s.cfg.Addr, s.Handler())
}
