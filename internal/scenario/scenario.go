// Package scenario — синтетические сигналы для бенчмарка: чистая синусоида с уходом частоты,
// скачок частоты и рампа–удержание–рампа назад. Вместе с сигналом возвращается истинная частота.
package scenario

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/config"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/consensus"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
)

// Signal — отсчёты sin(θ) и истинная частота на каждом отсчёте.
// θ накапливается как 2π·cumsum(f)/fs, поэтому фаза непрерывна при скачках частоты.
type Signal struct {
	Name   string
	Fs     float64
	Values []float64
	Freq   []float64
	theta  []float64
}

// StepConfig — скачок f0 → f_step в t_step и обратно в t_back
type StepConfig struct {
	F0, FStep    float64
	TStep, TBack float64
	Duration     float64
	Fs           float64
}

// RampStepConfig — рампа от f0 к f_step начиная с t_step, удержание, рампа назад с t_back
type RampStepConfig struct {
	F0, FStep    float64
	TStep, TBack float64
}

func validate(duration, fs float64) error {
	if !(fs > 0) {
		return fmt.Errorf("%w: fs must be > 0, got %v", pmu.ErrConfiguration, fs)
	}
	if !(duration >= 0) {
		return fmt.Errorf("%w: duration must be >= 0, got %v", pmu.ErrConfiguration, duration)
	}
	return nil
}

// samples — число отсчётов на [0, duration) с шагом 1/fs
func samples(duration, fs float64) int {
	x := duration * fs
	if r := math.Round(x); math.Abs(x-r) < 1e-9 {
		return int(r)
	}
	return int(math.Ceil(x))
}

// synth строит сигнал по закону частоты f(t)
func synth(name string, duration, fs float64, f func(t float64) float64) *Signal {
	n := samples(duration, fs)
	s := &Signal{
		Name:   name,
		Fs:     fs,
		Values: make([]float64, n),
		Freq:   make([]float64, n),
		theta:  make([]float64, n),
	}
	for k := range s.Freq {
		s.Freq[k] = f(float64(k) / fs)
	}
	floats.CumSum(s.theta, s.Freq)
	floats.Scale(2*math.Pi/fs, s.theta)
	for k, th := range s.theta {
		s.Values[k] = math.Sin(th)
	}
	return s
}

// Clean — синусоида f0 с линейным уходом на df за всю длительность
func Clean(f0, df, duration, fs float64) (*Signal, error) {
	if err := validate(duration, fs); err != nil {
		return nil, err
	}
	return synth(config.KindClean, duration, fs, func(t float64) float64 {
		if duration > 0 {
			return f0 + df*t/duration
		}
		return f0
	}), nil
}

// Step — скачок частоты
func Step(c StepConfig) (*Signal, error) {
	if err := validate(c.Duration, c.Fs); err != nil {
		return nil, err
	}
	return synth(config.KindStep, c.Duration, c.Fs, func(t float64) float64 {
		if t >= c.TStep && t < c.TBack {
			return c.FStep
		}
		return c.F0
	}), nil
}

// RampStep — рампа со скоростью rocof (Гц/с), удержание, рампа назад; rocof <= 0 — без рамп (чистый скачок).
func RampStep(c RampStepConfig, duration, fs, rocof float64) (*Signal, error) {
	if err := validate(duration, fs); err != nil {
		return nil, err
	}
	var ramp float64
	if rocof > 0 {
		ramp = math.Abs(c.FStep-c.F0) / rocof
	}
	sgn := 1.0
	if c.FStep < c.F0 {
		sgn = -1
	}
	return synth(config.KindRampStep, duration, fs, func(t float64) float64 {
		switch {
		case t < c.TStep:
			return c.F0
		case t < c.TStep+ramp:
			return c.F0 + sgn*rocof*(t-c.TStep)
		case t < c.TBack:
			return c.FStep
		case t < c.TBack+ramp:
			return c.FStep - sgn*rocof*(t-c.TBack)
		}
		return c.F0
	}), nil
}

// FromConfig строит сигнал по описанию сценария
func FromConfig(c config.Scenario, fs float64) (*Signal, error) {
	var (
		s   *Signal
		err error
	)
	switch c.Kind {
	case config.KindClean:
		s, err = Clean(c.F0, c.Df, c.Duration, fs)
	case config.KindStep:
		s, err = Step(StepConfig{F0: c.F0, FStep: c.FStep, TStep: c.TStep, TBack: c.TBack, Duration: c.Duration, Fs: fs})
	case config.KindRampStep:
		s, err = RampStep(RampStepConfig{F0: c.F0, FStep: c.FStep, TStep: c.TStep, TBack: c.TBack}, c.Duration, fs, c.Rocof)
	default:
		return nil, fmt.Errorf("%w: unknown scenario kind %q", pmu.ErrConfiguration, c.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", c.Name, err)
	}
	if c.Name != "" {
		s.Name = c.Name
	}
	return s, nil
}

// Len — число отсчётов
func (s *Signal) Len() int { return len(s.Values) }

// Time — метка времени отсчёта k, секунды от начала
func (s *Signal) Time(k int) float64 { return float64(k) / s.Fs }

// Inputs — симметричная трёхфазная система напряжений (V2, V3 сдвинуты на ∓120°), токи нулевые.
func (s *Signal) Inputs() []pmu.Input {
	out := make([]pmu.Input, len(s.theta))
	for k, th := range s.theta {
		out[k] = pmu.Input{
			V1:        s.Values[k],
			V2:        math.Sin(th - 2*math.Pi/3),
			V3:        math.Sin(th + 2*math.Pi/3),
			Timestamp: s.Time(k),
		}
	}
	return out
}

// NodeSamples — одинаковая форма сигнала на всех узлах
func (s *Signal) NodeSamples(nodes []string) []consensus.Sample {
	out := make([]consensus.Sample, len(s.Values))
	for k, v := range s.Values {
		vals := make(map[string]float64, len(nodes))
		for _, n := range nodes {
			vals[n] = v
		}
		out[k] = consensus.Sample{Timestamp: s.Time(k), Values: vals}
	}
	return out
}
