package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/goflowspace/goflow"
	"github.com/goflowspace/goflow/internal/logging"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordEditorActivity(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	var buf bytes.Buffer
	logger := logging.NewWriter(&buf, slog.LevelDebug, logging.FormatJSON)

	ed := goflow.New(goflow.WithLifecycleHooks(observability.Chain(m.Hooks(), observability.LoggingHooks(logger))))

	layerID, err := ed.AddLayer(ctx, domain.Coordinates{}, "")
	require.NoError(t, err)
	require.NoError(t, ed.Navigate(layerID))
	_, err = ed.AddNode(ctx, domain.NewNarrative("n", domain.Coordinates{}, domain.NodeData{Text: "n"}))
	require.NoError(t, err)

	require.NoError(t, ed.Navigate("root"))
	ok, err := ed.Undo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ed.Navigate(layerID))
	ok, err = ed.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Commands.WithLabelValues(string(domain.EventCommandExecuted))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues(string(domain.EventCommandUndone))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refusals.WithLabelValues("undo", string(domain.RefusedWrongLayer))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryDepth.WithLabelValues("undo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryDepth.WithLabelValues("redo")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.PortSyncs), 2.0)

	assert.Contains(t, buf.String(), `"msg":"command_refused"`)
	assert.Contains(t, buf.String(), `"msg":"ports_synced"`)

	rec := httptest.NewRecorder()
	observability.Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "goflow_commands_total")
}

func TestChain_SkipsNilCallbacks(t *testing.T) {
	var calls []string
	h := observability.Chain(
		domain.LifecycleHooks{OnCommandExecuted: func(context.Context, *domain.CommandEvent) { calls = append(calls, "a") }},
		domain.LifecycleHooks{},
		domain.LifecycleHooks{OnCommandExecuted: func(context.Context, *domain.CommandEvent) { calls = append(calls, "b") }},
	)
	h.OnCommandExecuted(context.Background(), &domain.CommandEvent{})
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Nil(t, h.OnCommandUndone)
	assert.Nil(t, h.OnPortsSynced)
}
