package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed int
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	s.events = append(s.events, batch...)
	s.mu.Unlock()
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func validEvent(phase Phase) Event {
	return Event{
		ContentID: "content-1",
		TraceID:   "trace-1",
		TS:        time.Now().UTC(),
		Phase:     phase,
		OK:        true,
		Dur:       5 * time.Millisecond,
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, validEvent(PhaseFetch).Validate())

	missing := validEvent(PhaseFetch)
	missing.ContentID = ""
	require.Error(t, missing.Validate())

	noTS := validEvent(PhaseFetch)
	noTS.TS = time.Time{}
	require.Error(t, noTS.Validate())

	badPhase := validEvent("teleport")
	require.Error(t, badPhase.Validate())

	negDur := validEvent(PhaseUpsert)
	negDur.Dur = -time.Second
	require.Error(t, negDur.Validate())
}

func TestHubDeliversAndCloses(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: 10 * time.Millisecond}, sink)

	phases := []Phase{PhaseRunStart, PhaseFetch, PhaseExtract, PhaseUpsert, PhaseRunDone}
	for _, p := range phases {
		hub.Emit(validEvent(p))
	}
	require.NoError(t, hub.Close(context.Background()))

	got := sink.snapshot()
	require.Len(t, got, len(phases))
	for i, p := range phases {
		require.Equal(t, p, got[i].Phase, "order is preserved")
	}
	require.Equal(t, 1, sink.closed)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{Phase: PhaseFetch}) // no content id, no timestamp
	hub.Emit(validEvent(PhaseFetch))
	require.NoError(t, hub.Close(context.Background()))

	require.Len(t, sink.snapshot(), 1)
}

func TestHubEmitAfterClose(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{BufferSize: 1}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(validEvent(PhaseFetch))
	require.Empty(t, sink.snapshot())
	require.NoError(t, hub.Close(context.Background()), "close is idempotent")
}

func TestHubBatchSizeFlush(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchEvents: 4, MaxBatchWait: time.Hour}, sink)

	for range 4 {
		hub.Emit(validEvent(PhaseQuote))
	}
	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 4
	}, 2*time.Second, 10*time.Millisecond, "a full batch flushes without waiting for the ticker")

	require.NoError(t, hub.Close(context.Background()))
}

func TestHubNilSafe(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(validEvent(PhaseFetch))
	require.NoError(t, hub.Close(context.Background()))

	evt := Event{ErrorCode: discovery.CodeTimeout}
	require.Error(t, evt.Validate())
}
