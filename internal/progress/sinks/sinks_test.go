package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/progress"
)

func stageEvent(phase progress.Phase, ok bool) progress.Event {
	evt := progress.Event{
		ContentID: "content-1",
		TraceID:   "trace-1",
		TS:        time.Now().UTC(),
		Phase:     phase,
		OK:        ok,
		Dur:       12 * time.Millisecond,
	}
	if !ok {
		evt.ErrorCode = discovery.CodeTimeout
	}
	return evt
}

func TestLogSinkFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	batch := []progress.Event{
		stageEvent(progress.PhaseFetch, true),
		stageEvent(progress.PhaseUpsert, false),
	}
	batch[0].Note = "direct"

	require.NoError(t, sink.Consume(context.Background(), batch))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	require.Equal(t, "fetch", first["phase"])
	require.Equal(t, true, first["ok"])
	require.Equal(t, "direct", first["note"])
	require.NotContains(t, first, "error_code")

	second := entries[1].ContextMap()
	require.Equal(t, "upsert", second["phase"])
	require.Equal(t, string(discovery.CodeTimeout), second["error_code"])
	require.NotContains(t, second, "note")
}

func TestLogSinkNilLogger(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{stageEvent(progress.PhaseQuote, true)}))
}

func TestPrometheusSinkCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	batch := []progress.Event{
		stageEvent(progress.PhaseRunStart, true),
		stageEvent(progress.PhaseFetch, true),
		stageEvent(progress.PhaseExtract, false),
		stageEvent(progress.PhaseRunDone, false),
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, float64(1), testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, float64(0), testutil.ToFloat64(sink.runsActive), "start and done balance out")
	require.Equal(t, float64(1), testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.stageTotal.WithLabelValues("fetch", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.stageTotal.WithLabelValues("extract", "error")))
	require.NoError(t, sink.Close(context.Background()))
}

func TestPrometheusSinkDoubleRegister(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	_, err = NewPrometheusSink(reg)
	require.Error(t, err, "the registry rejects duplicate collectors")
}
