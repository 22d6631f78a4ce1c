package zcd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name       string
		prev, curr float64
		eps        float64
		mode       Mode
		crossed    bool
		tCross     float64
	}{
		{"neg_to_pos midpoint", -1, 1, 0, NegToPos, true, 0.5},
		{"neg_to_pos quarter", -1, 3, 0, NegToPos, true, 0.25},
		{"neg_to_pos lands on zero", -2, 0, 0, NegToPos, true, 1},
		{"neg_to_pos ignores falling", 1, -1, 0, NegToPos, false, 0},
		{"pos_to_neg", 3, -1, 0, PosToNeg, true, 0.75},
		{"pos_to_neg ignores rising", -1, 1, 0, PosToNeg, false, 0},
		{"either rising", -1, 1, 0, Either, true, 0.5},
		{"either falling", 1, -1, 0, Either, true, 0.5},
		{"either needs nonzero current", -1, 0, 0, Either, false, 0},
		{"deadband blocks small negative", -0.05, 1, 0.1, NegToPos, false, 0},
		{"deadband: current inside band counts", -1, 0.05, 0.1, NegToPos, true, 1 / 1.05},
		{"no crossing", 1, 2, 0, Either, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crossed, tc := Detect(tt.prev, 0, tt.curr, 1, tt.eps, tt.mode)
			assert.Equal(t, tt.crossed, crossed)
			if tt.crossed {
				assert.InDelta(t, tt.tCross, tc, 1e-12)
			}
		})
	}
}

func TestDetect_Degenerate(t *testing.T) {
	// Равные значения лежат в одной области — перехода нет
	crossed, tc := Detect(-1, 2.0, -1, 2.5, 0, NegToPos)
	assert.False(t, crossed)
	assert.Zero(t, tc)

	// Очень малые амплитуды: интерполяция не теряет точность
	crossed, tc = Detect(-1e-300, 10, 1e-300, 11, 0, NegToPos)
	require.True(t, crossed)
	assert.InDelta(t, 10.5, tc, 1e-9)
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"neg_to_pos", "pos_to_neg", "either"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, s, m.String())
	}
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, NegToPos, m)
	_, err = ParseMode("up")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	ok := DefaultConfig()
	require.NoError(t, ok.Validate())

	bad := []Config{
		func() Config { c := ok; c.Epsilon = -1; return c }(),
		func() Config { c := ok; c.MinPeriodS = 0; return c }(),
		func() Config { c := ok; c.MaxPeriodS = -1; return c }(),
		func() Config { c := ok; c.MinPeriodS, c.MaxPeriodS = 0.5, 0.1; return c }(),
		func() Config { c := ok; c.Mode = Mode(7); return c }(),
	}
	for i, c := range bad {
		_, err := NewTracker(c)
		assert.ErrorIs(t, err, pmu.ErrConfiguration, "case %d", i)
	}
}

func feedSine(tr *Tracker, f, fs float64, n int) []Result {
	out := make([]Result, n)
	for k := 0; k < n; k++ {
		ts := float64(k) / fs
		out[k] = tr.Update(math.Sin(2*math.Pi*f*ts), ts)
	}
	return out
}

func TestTracker_PureSine(t *testing.T) {
	cases := []struct{ f, fs float64 }{
		{60, 12000},
		{50, 5000},
		{60, 6000},
	}
	for _, c := range cases {
		tr, err := NewTracker(DefaultConfig())
		require.NoError(t, err)
		period := int(c.fs / c.f)
		res := feedSine(tr, c.f, c.fs, 10*period)

		// До первого перехода — номинальная частота и нулевой RoCoF
		for _, r := range res[:period/2] {
			assert.Equal(t, DefaultNominalHz, r.FreqHz)
			assert.Zero(t, r.RocofHzS)
		}
		for k, r := range res[2*period+1:] {
			require.InDelta(t, c.f, r.FreqHz, 1e-6, "f=%v fs=%v sample %d", c.f, c.fs, k+2*period+1)
			require.InDelta(t, 0, r.RocofHzS, 1e-3)
		}
		assert.True(t, tr.Settled())
	}
}

func TestTracker_PeriodFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPeriodS = 0.5
	tr, err := NewTracker(cfg)
	require.NoError(t, err)

	tr.Update(-1, 0.0)
	r := tr.Update(1, 0.1) // первый переход в 0.05: частоты ещё нет
	require.True(t, r.Crossed)
	assert.Equal(t, cfg.NominalHz, r.FreqHz)
	assert.False(t, tr.State().LastFreq.Valid)

	tr.Update(-1, 0.2)
	r = tr.Update(1, 0.3) // переход в 0.25: период 0.2 → 5 Гц
	require.True(t, r.Crossed)
	assert.InDelta(t, 5.0, r.FreqHz, 1e-9)

	before := tr.State()
	tr.Update(-1, 2.0)
	r = tr.Update(1, 2.1) // переход в 2.05: период 1.8 > 0.5, отбрасывается
	assert.True(t, r.Crossed, "переход обнаружен, хотя период отброшен")
	after := tr.State()
	assert.Equal(t, before.LastFreq, after.LastFreq)
	assert.Equal(t, before.PrevFreq, after.PrevFreq)
	assert.Equal(t, before.LastCrossTs, after.LastCrossTs)
	assert.Equal(t, before.PrevCrossTs, after.PrevCrossTs)
	assert.InDelta(t, 5.0, r.FreqHz, 1e-9)
	assert.Equal(t, Opt{V: 2.1, Valid: true}, after.PrevTs)
}

func TestTracker_Rocof(t *testing.T) {
	tr, err := NewTracker(DefaultConfig())
	require.NoError(t, err)
	tr.Update(-1, 0.0)
	tr.Update(1, 0.1) // 0.05
	tr.Update(-1, 0.2)
	r := tr.Update(1, 0.3) // 0.25 → 5 Гц
	assert.Zero(t, r.RocofHzS, "нужны две оценки частоты")
	tr.Update(-1, 0.3)
	r = tr.Update(1, 0.4) // 0.35 → 10 Гц
	assert.InDelta(t, 10.0, r.FreqHz, 1e-9)
	assert.InDelta(t, 50.0, r.RocofHzS, 1e-6)

	st := tr.State()
	assert.GreaterOrEqual(t, st.LastCrossTs.V, st.PrevCrossTs.V)
}

func TestTracker_ResetReproduces(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = Either
	tr, err := NewTracker(cfg)
	require.NoError(t, err)
	first := feedSine(tr, 59.3, 4800, 2000)
	tr.Reset()
	assert.Equal(t, State{}, tr.State())
	second := feedSine(tr, 59.3, 4800, 2000)
	assert.Equal(t, first, second)

	fresh, err := NewTracker(cfg)
	require.NoError(t, err)
	assert.Equal(t, first, feedSine(fresh, 59.3, 4800, 2000))
}
