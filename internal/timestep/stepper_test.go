package timestep

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/beatsim/internal/dynamo"
)

func collect(t *testing.T, iv dynamo.Interval, sched Schedule) []dynamo.Interval {
	t.Helper()
	st, err := New(iv, sched)
	require.NoError(t, err)
	var out []dynamo.Interval
	for step := range st.All() {
		out = append(out, step)
	}
	return out
}

func TestConstantScheduleTilesExactly(t *testing.T) {
	got := collect(t, dynamo.Interval{T0: 0, T1: 0.5}, Constant(0.1))
	want := []dynamo.Interval{
		{T0: 0, T1: 0.1}, {T0: 0.1, T1: 0.2}, {T0: 0.2, T1: 0.3}, {T0: 0.3, T1: 0.4}, {T0: 0.4, T1: 0.5},
	}

	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].T0, got[i].T0, 1e-12, "interval %d start", i)
		assert.InDelta(t, want[i].T1, got[i].T1, 1e-12, "interval %d end", i)
	}
	assert.Equal(t, 0.5, got[len(got)-1].T1, "final endpoint must equal T1 exactly")
}

func TestVariableSchedule(t *testing.T) {
	sched := Variable(Switch{At: 0.0, Dt: 0.1}, Switch{At: 0.2, Dt: 0.05})
	got := collect(t, dynamo.Interval{T0: 0, T1: 0.3}, sched)

	widths := []float64{0.1, 0.1, 0.05, 0.05}
	require.Len(t, got, len(widths))
	for i, w := range widths {
		assert.InDelta(t, w, got[i].Dt(), 1e-12, "width of interval %d", i)
	}
	assert.Equal(t, 0.2, got[1].T1)
	assert.Equal(t, 0.3, got[len(got)-1].T1)
}

func TestSwitchTimeClipsInterval(t *testing.T) {
	sched := Variable(Switch{At: 0, Dt: 0.3}, Switch{At: 0.5, Dt: 0.1})
	got := collect(t, dynamo.Interval{T0: 0, T1: 0.7}, sched)

	require.Len(t, got, 4)
	assert.InDelta(t, 0.3, got[0].T1, 1e-12)
	assert.Equal(t, 0.5, got[1].T1, "interval crossing the switch must stop at it")
	assert.InDelta(t, 0.6, got[2].T1, 1e-12)
	assert.Equal(t, 0.7, got[3].T1)
}

func TestContiguityProperty(t *testing.T) {
	cases := []struct {
		t0, t1, dt float64
	}{
		{0, 1, 0.3},
		{0, 1, 0.1},
		{-2.5, 3.7, 0.013},
		{1, 1.0001, 1},
		{0, 10, 1e-3},
		{0.1, 0.7, 0.2},
	}

	for _, c := range cases {
		got := collect(t, dynamo.Interval{T0: c.t0, T1: c.t1}, Constant(c.dt))
		require.NotEmpty(t, got)

		assert.Equal(t, c.t0, got[0].T0)
		assert.Equal(t, c.t1, got[len(got)-1].T1, "no gap or overrun at T1")
		for i, iv := range got {
			assert.Greater(t, iv.T1, iv.T0, "interval %d must be non-degenerate", i)
			assert.LessOrEqual(t, iv.Dt(), c.dt*(1+1e-9), "interval %d overruns dt", i)
			if i > 0 {
				assert.Equal(t, got[i-1].T1, iv.T0, "interval %d not contiguous", i)
			}
		}
	}
}

func TestSwitchBeforeStartIsActive(t *testing.T) {
	sched := Variable(Switch{At: -1, Dt: 0.5}, Switch{At: 0.5, Dt: 0.25})
	st, err := New(dynamo.Interval{T0: 0.6, T1: 1.1}, sched)
	require.NoError(t, err)
	assert.Equal(t, 0.25, st.Dt())

	n, err := Count(dynamo.Interval{T0: 0.6, T1: 1.1}, sched)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNotRestartable(t *testing.T) {
	st, err := New(dynamo.Interval{T0: 0, T1: 0.2}, Constant(0.1))
	require.NoError(t, err)

	n := 0
	for range st.All() {
		n++
	}
	assert.Equal(t, 2, n)

	_, ok := st.Next()
	assert.False(t, ok)
	for range st.All() {
		t.Fatal("exhausted stepper yielded again")
	}
}

func TestConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		iv    dynamo.Interval
		sched Schedule
	}{
		{"zero dt", dynamo.Interval{T0: 0, T1: 1}, Constant(0)},
		{"negative dt", dynamo.Interval{T0: 0, T1: 1}, Constant(-0.1)},
		{"NaN dt", dynamo.Interval{T0: 0, T1: 1}, Constant(math.NaN())},
		{"empty interval", dynamo.Interval{T0: 1, T1: 1}, Constant(0.1)},
		{"reversed interval", dynamo.Interval{T0: 1, T1: 0}, Constant(0.1)},
		{"empty schedule", dynamo.Interval{T0: 0, T1: 1}, Schedule{}},
		{"non-increasing switches", dynamo.Interval{T0: 0, T1: 1},
			Variable(Switch{At: 0, Dt: 0.1}, Switch{At: 0.5, Dt: 0.1}, Switch{At: 0.5, Dt: 0.2})},
		{"decreasing switches", dynamo.Interval{T0: 0, T1: 1},
			Variable(Switch{At: 0, Dt: 0.1}, Switch{At: -1, Dt: 0.2})},
		{"nothing active at start", dynamo.Interval{T0: 0, T1: 1}, Variable(Switch{At: 0.5, Dt: 0.1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := New(tt.iv, tt.sched)
			assert.Nil(t, st)
			assert.ErrorIs(t, err, dynamo.ErrConfiguration)
		})
	}
}

func TestScheduleHelpers(t *testing.T) {
	sched := Variable(Switch{At: 0, Dt: 0.2}, Switch{At: 1, Dt: 0.05})
	assert.Equal(t, 0.05, sched.MinDt())

	half := sched.Scale(0.5)
	assert.Equal(t, 0.1, half[0].Dt)
	assert.Equal(t, 0.025, half[1].Dt)
	assert.Equal(t, 0.2, sched[0].Dt, "Scale must not modify the receiver")
}
