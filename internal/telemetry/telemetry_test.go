package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/beatsim/internal/dynamo"
)

func TestCollector(t *testing.T) {
	c := New("test")
	c.ObservePhase("pde", 3*time.Millisecond)
	c.ObservePhase("pde", time.Millisecond)
	c.ObservePhase("tentative-ode", time.Millisecond)
	c.ObserveStep(dynamo.Interval{T0: 0, T1: 0.1})
	c.ObserveStep(dynamo.Interval{T0: 0.1, T1: 0.2})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.steps))
	assert.Equal(t, 0.2, testutil.ToFloat64(c.simTime))
	assert.Equal(t, 2, testutil.CollectAndCount(c.phases))

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `beatsim_phase_duration_seconds_count{phase="pde",run="test"} 2`), text)
	assert.True(t, strings.Contains(text, `beatsim_steps_total{run="test"} 2`), text)
}
