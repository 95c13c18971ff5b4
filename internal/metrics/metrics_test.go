package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raywatch/internal/domain"
)

func TestCollectors(t *testing.T) {
	c := New()

	c.ObserveScan(12, 3)
	c.ObserveScanError("permission")
	c.ObserveScanError("permission")
	c.ObservePoll("ok")
	c.ObservePoll("error")
	c.ObservePoll("ok")
	c.SetUnits(3)
	c.ObserveCycle("ok", 2*time.Second)
	require.NoError(t, c.Emit(context.Background(), domain.Removed("10.0.0.6")))

	assert.Equal(t, float64(12), testutil.ToFloat64(c.scanReplies))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.scanMatched))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.scanErrors.WithLabelValues("permission")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.polls.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.polls.WithLabelValues("error")))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.units))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.cycles.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.events.WithLabelValues("charger_removed")))
}

func TestHandler(t *testing.T) {
	c := New()
	c.ObservePoll("ok")

	registry, err := NewRegistry(c)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `raywatch_unit_polls_total{result="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
