package estimator

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/config"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/zcd"
)

// threePhase — сбалансированное трёхфазное напряжение с частотой f(t); фаза накапливается по отсчётам.
func threePhase(fs float64, n int, f func(t float64) float64) []pmu.Input {
	out := make([]pmu.Input, n)
	theta := 0.0
	for k := range out {
		ts := float64(k) / fs
		theta += 2 * math.Pi * f(ts) / fs
		out[k] = pmu.Input{
			V1:        math.Sin(theta),
			V2:        math.Sin(theta - 2*math.Pi/3),
			V3:        math.Sin(theta + 2*math.Pi/3),
			Timestamp: ts,
		}
	}
	return out
}

func constant(f float64) func(float64) float64 { return func(float64) float64 { return f } }

func run(t *testing.T, e Estimator, in []pmu.Input) []pmu.Output {
	t.Helper()
	out := make([]pmu.Output, len(in))
	for i, s := range in {
		o, err := e.Update(s)
		require.NoError(t, err)
		out[i] = o
	}
	return out
}

func estimatorConfig(typ string, fs float64) config.EstimatorConfig {
	c := config.Default().Estimator
	c.Type = typ
	c.Fs = fs
	return c
}

func TestNew_Types(t *testing.T) {
	for _, typ := range []string{config.TypeZCDSingle, config.TypeZCDMulti, config.TypeIpDFT} {
		e, err := New(estimatorConfig(typ, 5000))
		require.NoError(t, err, typ)
		assert.NotEmpty(t, e.Name())
	}
}

func TestNew_ConfigurationErrors(t *testing.T) {
	for _, typ := range []string{config.TypeZCDSingle, config.TypeZCDMulti, config.TypeIpDFT} {
		for _, fs := range []float64{0, -1, math.NaN()} {
			_, err := New(estimatorConfig(typ, fs))
			assert.ErrorIs(t, err, pmu.ErrConfiguration, "%s fs=%v", typ, fs)
		}
	}

	bad := map[string]func(c *config.EstimatorConfig){
		"frame_len":   func(c *config.EstimatorConfig) { c.Type = config.TypeIpDFT; c.FrameLen = 2 },
		"channel":     func(c *config.EstimatorConfig) { c.Channel = "V9" },
		"channels":    func(c *config.EstimatorConfig) { c.Type = config.TypeZCDMulti; c.Channels = []string{"V1", "V1"} },
		"agg":         func(c *config.EstimatorConfig) { c.Type = config.TypeZCDMulti; c.Agg = "mode" },
		"mode":        func(c *config.EstimatorConfig) { c.Mode = "sideways" },
		"epsilon":     func(c *config.EstimatorConfig) { c.Epsilon = -0.1 },
		"periods":     func(c *config.EstimatorConfig) { c.MinPeriodS, c.MaxPeriodS = 1, 0.1 },
		"type":        func(c *config.EstimatorConfig) { c.Type = "pll" },
		"distributed": func(c *config.EstimatorConfig) { c.Type = config.TypeZCDDistributed },
	}
	for name, mutate := range bad {
		t.Run(name, func(t *testing.T) {
			c := estimatorConfig(config.TypeZCDSingle, 5000)
			mutate(&c)
			e, err := New(c)
			assert.ErrorIs(t, err, pmu.ErrConfiguration)
			assert.Nil(t, e)
		})
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		vals   []float64
		agg    Aggregation
		expect float64
	}{
		{nil, AggMedian, 0},
		{nil, AggMean, 0},
		{[]float64{3, 1, 2}, AggMedian, 2},
		{[]float64{4, 1, 3, 2}, AggMedian, 2.5},
		{[]float64{4, 1, 3, 2}, AggMean, 2.5},
		{[]float64{60, 60, 90}, AggMedian, 60},
		{[]float64{60, 60, 90}, AggMean, 70},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expect, Aggregate(tt.vals, tt.agg), 1e-12, "%v %s", tt.vals, tt.agg)
	}

	vals := []float64{3, 1, 2}
	Aggregate(vals, AggMedian)
	assert.Equal(t, []float64{3, 1, 2}, vals, "вход не сортируется на месте")
}

func TestParseAggregation(t *testing.T) {
	a, err := ParseAggregation("")
	require.NoError(t, err)
	assert.Equal(t, AggMedian, a)
	a, err = ParseAggregation("mean")
	require.NoError(t, err)
	assert.Equal(t, "mean", a.String())
	_, err = ParseAggregation("max")
	assert.ErrorIs(t, err, pmu.ErrConfiguration)
}

func TestSinglePhase_PureSine(t *testing.T) {
	e, err := NewSinglePhase(SingleConfig{Fs: 12000, Channel: pmu.V1, ZCD: zcd.DefaultConfig()})
	require.NoError(t, err)
	out := run(t, e, threePhase(12000, 12000, constant(60)))

	assert.True(t, out[0].Status.Has(pmu.StatusPLLUnlocked))
	assert.Equal(t, 60.0, out[0].FrequencyHz)
	for i, o := range out[401:] {
		require.InDelta(t, 60.0, o.FrequencyHz, 1e-6, "sample %d", i+401)
		require.InDelta(t, 0.0, o.RocofHzS, 1e-3)
		require.True(t, o.Status.IsOK())
	}
	assert.Len(t, out[0].Phasors, len(pmu.Channels))
}

func TestSinglePhase_MissingChannel(t *testing.T) {
	cfg := SingleConfig{Fs: 5000, Channel: pmu.V2, ZCD: zcd.DefaultConfig()}
	e, err := NewSinglePhase(cfg)
	require.NoError(t, err)
	in := threePhase(5000, 500, constant(50))

	first := run(t, e, in[:200])
	_, err = e.Update(pmu.Frame{Timestamp: 1, Values: map[pmu.Channel]float64{pmu.V1: 0.5}})
	require.ErrorIs(t, err, pmu.ErrInputContract)
	rest := run(t, e, in[200:])

	fresh, err := NewSinglePhase(cfg)
	require.NoError(t, err)
	assert.Equal(t, append(first, rest...), run(t, fresh, in))
}

func TestSinglePhase_NonFinite(t *testing.T) {
	e, err := NewSinglePhase(SingleConfig{Fs: 5000, Channel: pmu.V1, ZCD: zcd.DefaultConfig()})
	require.NoError(t, err)
	in := threePhase(5000, 1000, constant(50))
	out := run(t, e, in)
	last := out[len(out)-1]

	o, err := e.Update(pmu.Input{V1: math.NaN(), Timestamp: math.Inf(1)})
	require.NoError(t, err)
	assert.True(t, o.Status.Has(pmu.StatusDataError))
	assert.False(t, o.Status.Has(pmu.StatusPLLUnlocked))
	assert.Equal(t, last.FrequencyHz, o.FrequencyHz)
	assert.Equal(t, last.RocofHzS, o.RocofHzS)
	assert.Equal(t, last.TimestampUTC, o.TimestampUTC)
	assert.NotContains(t, o.Phasors, pmu.V1)

	_, err = json.Marshal(o)
	assert.NoError(t, err)
}

func TestMultiPhase_Balanced(t *testing.T) {
	for _, agg := range []Aggregation{AggMedian, AggMean} {
		e, err := NewMultiPhase(MultiConfig{Fs: 12000, Channels: []pmu.Channel{pmu.V1, pmu.V2, pmu.V3}, Agg: agg, ZCD: zcd.DefaultConfig()})
		require.NoError(t, err)
		out := run(t, e, threePhase(12000, 6000, constant(60)))
		for _, o := range out[601:] {
			require.InDelta(t, 60.0, o.FrequencyHz, 1e-6)
			require.True(t, o.Status.IsOK())
		}
	}
}

func TestMultiPhase_MissingChannelLeavesStateUntouched(t *testing.T) {
	cfg := MultiConfig{Fs: 5000, Channels: []pmu.Channel{pmu.V1, pmu.V2, pmu.V3}, Agg: AggMedian, ZCD: zcd.DefaultConfig()}
	e, err := NewMultiPhase(cfg)
	require.NoError(t, err)
	in := threePhase(5000, 400, constant(60))
	first := run(t, e, in[:150])

	_, err = e.Update(pmu.Frame{Timestamp: 0.5, Values: map[pmu.Channel]float64{pmu.V1: -1, pmu.V2: 1}})
	require.ErrorIs(t, err, pmu.ErrInputContract)
	rest := run(t, e, in[150:])

	fresh, err := NewMultiPhase(cfg)
	require.NoError(t, err)
	assert.Equal(t, append(first, rest...), run(t, fresh, in))
}

func TestMultiPhase_OneBadChannel(t *testing.T) {
	e, err := NewMultiPhase(MultiConfig{Fs: 6000, Channels: []pmu.Channel{pmu.V1, pmu.V2, pmu.V3}, Agg: AggMedian, ZCD: zcd.DefaultConfig()})
	require.NoError(t, err)
	in := threePhase(6000, 1200, constant(60))
	run(t, e, in)

	s := in[len(in)-1]
	s.Timestamp += 1 / 6000.0
	s.V2 = math.NaN()
	o, err := e.Update(s)
	require.NoError(t, err)
	assert.True(t, o.Status.Has(pmu.StatusDataError))
	assert.InDelta(t, 60.0, o.FrequencyHz, 1e-6)
	assert.Equal(t, s.Timestamp, o.TimestampUTC)
}

// Скачок 60 → 59.5 → 60 Гц на 5 кГц: RoCoF отрицателен сразу после скачка вниз,
// положителен после возврата и близок к нулю в остальное время.
func TestZCD_FrequencyStep(t *testing.T) {
	const (
		fs    = 5000.0
		tStep = 1.0
		tBack = 2.0
		win   = 0.06 // три периода после перехода
	)
	step := func(t float64) float64 {
		if t >= tStep && t < tBack {
			return 59.5
		}
		return 60
	}
	in := threePhase(fs, int(3*fs), step)

	for _, typ := range []string{config.TypeZCDSingle, config.TypeZCDMulti} {
		t.Run(typ, func(t *testing.T) {
			e, err := New(estimatorConfig(typ, fs))
			require.NoError(t, err)
			out := run(t, e, in)

			minDown, maxDown := math.Inf(1), math.Inf(-1)
			minUp, maxUp := math.Inf(1), math.Inf(-1)
			for _, o := range out {
				ts := o.TimestampUTC
				switch {
				case ts >= tStep && ts < tStep+win:
					minDown, maxDown = math.Min(minDown, o.RocofHzS), math.Max(maxDown, o.RocofHzS)
				case ts >= tBack && ts < tBack+win:
					minUp, maxUp = math.Min(minUp, o.RocofHzS), math.Max(maxUp, o.RocofHzS)
				case ts > 0.1:
					require.Less(t, math.Abs(o.RocofHzS), 1.0, "t=%v", ts)
				}
			}
			assert.Less(t, minDown, -5.0)
			assert.Less(t, maxDown, 1.0)
			assert.Greater(t, maxUp, 5.0)
			assert.Greater(t, minUp, -1.0)

			assert.InDelta(t, 59.5, out[int(1.5*fs)].FrequencyHz, 0.01)
			assert.InDelta(t, 60.0, out[len(out)-1].FrequencyHz, 0.01)
		})
	}
}

func TestEstimators_ResetReproduces(t *testing.T) {
	in := threePhase(4800, 3000, func(t float64) float64 { return 59 + 2*t })
	for _, typ := range []string{config.TypeZCDSingle, config.TypeZCDMulti, config.TypeIpDFT} {
		t.Run(typ, func(t *testing.T) {
			c := estimatorConfig(typ, 4800)
			c.Mode = "either"
			e, err := New(c)
			require.NoError(t, err)
			first := run(t, e, in)
			e.Reset()
			assert.Equal(t, first, run(t, e, in))
		})
	}
}

func TestPeakInterpolate(t *testing.T) {
	tests := []struct {
		name  string
		mag   []float64
		k     int
		delta float64
	}{
		{"symmetric", []float64{0, 1, 3, 1, 0}, 2, 0},
		{"leans right", []float64{0, 1, 3, 2, 0}, 2, 0.5 * (1 - 2) / (1 - 6 + 2)},
		{"leans left", []float64{0, 2, 3, 1, 0}, 2, 0.5 * (2 - 1) / (2 - 6 + 1)},
		{"dc edge", []float64{5, 1, 0}, 0, 0},
		{"top edge", []float64{0, 1, 5}, 2, 0},
		{"first max wins", []float64{0, 4, 1, 4, 0}, 1, 0.5 * (0 - 1) / (0 - 8 + 1)},
		{"empty", nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, delta := PeakInterpolate(tt.mag)
			assert.Equal(t, tt.k, k)
			assert.InDelta(t, tt.delta, delta, 1e-12)
		})
	}
	_, d := PeakInterpolate([]float64{0, 1, 3, 2, 0})
	assert.Greater(t, d, 0.0)
	_, d = PeakInterpolate([]float64{0, 2, 3, 1, 0})
	assert.Less(t, d, 0.0)
}

func newIpDFT(t *testing.T, fs float64, n int) *IpDFT {
	t.Helper()
	e, err := NewIpDFT(IpDFTConfig{Fs: fs, FrameLen: n, Channel: pmu.V1})
	require.NoError(t, err)
	return e
}

func TestIpDFT_BeforeFilled(t *testing.T) {
	e := newIpDFT(t, 1000, 100)
	out := run(t, e, threePhase(1000, 99, constant(60)))
	for _, o := range out {
		assert.Equal(t, 60.0, o.FrequencyHz)
		assert.Zero(t, o.RocofHzS)
		assert.True(t, o.Status.Has(pmu.StatusPLLUnlocked))
	}
}

func TestIpDFT_OnBin(t *testing.T) {
	// 60 Гц при fs=1000 и N=100: ровно шесть периодов в окне, пик точно в бине 6
	e := newIpDFT(t, 1000, 100)
	out := run(t, e, threePhase(1000, 400, constant(60)))
	for _, o := range out[99:] {
		require.InDelta(t, 60.0, o.FrequencyHz, 1e-6)
		require.True(t, o.Status.IsOK())
	}
	for _, o := range out[100:] {
		require.InDelta(t, 0.0, o.RocofHzS, 1e-3)
	}
}

func TestIpDFT_OffBinDirection(t *testing.T) {
	// Бин 10 Гц; смещение на 0.4 бина от бина 6 должно сдвигать оценку в ту же сторону
	for _, c := range []struct{ f, lo, hi float64 }{
		{64, 60, 70},
		{56, 50, 60},
	} {
		e := newIpDFT(t, 1000, 100)
		out := run(t, e, threePhase(1000, 300, constant(c.f)))
		for _, o := range out[99:] {
			require.Greater(t, o.FrequencyHz, c.lo, "f=%v", c.f)
			require.Less(t, o.FrequencyHz, c.hi, "f=%v", c.f)
		}
	}
}

func TestIpDFT_OverRange(t *testing.T) {
	e := newIpDFT(t, 1000, 20)
	var o pmu.Output
	for k := 0; k < 40; k++ {
		var err error
		o, err = e.Update(pmu.Input{V1: 1, Timestamp: float64(k) / 1000})
		require.NoError(t, err)
	}
	assert.True(t, o.Status.Has(pmu.StatusOverRange))
	assert.Zero(t, o.FrequencyHz)
}

func TestIpDFT_Errors(t *testing.T) {
	_, err := NewIpDFT(IpDFTConfig{Fs: 1000, FrameLen: 2, Channel: pmu.V1})
	assert.ErrorIs(t, err, pmu.ErrConfiguration)
	_, err = NewIpDFT(IpDFTConfig{Fs: 0, FrameLen: 50, Channel: pmu.V1})
	assert.ErrorIs(t, err, pmu.ErrConfiguration)

	e := newIpDFT(t, 1000, 10)
	_, err = e.Update(pmu.Frame{Timestamp: 0})
	assert.ErrorIs(t, err, pmu.ErrInputContract)

	o, err := e.Update(pmu.Input{V1: math.Inf(-1), Timestamp: 0})
	require.NoError(t, err)
	assert.True(t, o.Status.Has(pmu.StatusDataError))
	assert.Equal(t, 60.0, o.FrequencyHz)
}
