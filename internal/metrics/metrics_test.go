package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"pkt.systems/teamwatch/schema"
)

func TestObserverMethodsUpdateCollectors(t *testing.T) {
	m := New()
	m.EventReceived("admitted")
	m.EventReceived("admitted")
	m.EventReceived("filtered")
	m.FetchCompleted("events", nil)
	m.FetchCompleted("events", errors.New("boom"))
	m.StaleResponse("events")
	m.Reconnected()
	m.MessageDiscarded("malformed")
	m.Rate(17)

	if got := testutil.ToFloat64(m.EventsReceived.WithLabelValues("admitted")); got != 2 {
		t.Fatalf("expected 2 admitted, got %v", got)
	}
	if got := testutil.ToFloat64(m.EventsReceived.WithLabelValues("filtered")); got != 1 {
		t.Fatalf("expected 1 filtered, got %v", got)
	}
	if got := testutil.ToFloat64(m.FetchTotal.WithLabelValues("events", "error")); got != 1 {
		t.Fatalf("expected 1 failed fetch, got %v", got)
	}
	if got := testutil.ToFloat64(m.FetchTotal.WithLabelValues("events", "ok")); got != 1 {
		t.Fatalf("expected 1 ok fetch, got %v", got)
	}
	if got := testutil.ToFloat64(m.StaleResponses.WithLabelValues("events")); got != 1 {
		t.Fatalf("expected 1 stale response, got %v", got)
	}
	if got := testutil.ToFloat64(m.StreamReconnects); got != 1 {
		t.Fatalf("expected 1 reconnect, got %v", got)
	}
	if got := testutil.ToFloat64(m.MessagesDiscarded.WithLabelValues("malformed")); got != 1 {
		t.Fatalf("expected 1 discarded message, got %v", got)
	}
	if got := testutil.ToFloat64(m.EventsPerMinute); got != 17 {
		t.Fatalf("expected rate 17, got %v", got)
	}
}

func TestConnStateIsOneHot(t *testing.T) {
	m := New()
	if got := testutil.ToFloat64(m.StreamState.WithLabelValues("connecting")); got != 1 {
		t.Fatalf("expected initial connecting state, got %v", got)
	}
	m.ConnState(schema.ConnOpen)
	for state, want := range map[string]float64{"connecting": 0, "open": 1, "disconnected": 0} {
		if got := testutil.ToFloat64(m.StreamState.WithLabelValues(state)); got != want {
			t.Fatalf("%s: expected %v, got %v", state, want, got)
		}
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.EventReceived("admitted")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `teamwatch_events_received_total{result="admitted"} 1`) {
		t.Fatalf("expected counter in exposition, got:\n%s", body)
	}
}
