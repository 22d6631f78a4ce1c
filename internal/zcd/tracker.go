package zcd

import (
	"fmt"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
)

// Значения по умолчанию
const (
	DefaultNominalHz = 60.0
	DefaultMinPeriod = 1e-6
	DefaultMaxPeriod = 1.0
)

// Config — параметры детектора (проверяются один раз при создании Tracker)
type Config struct {
	Epsilon    float64 // мёртвая зона вокруг нуля
	NominalHz  float64 // частота до первого принятого периода
	Mode       Mode
	MinPeriodS float64 // периоды вне [MinPeriodS, MaxPeriodS] отбрасываются
	MaxPeriodS float64
}

// DefaultConfig возвращает конфиг по умолчанию
func DefaultConfig() Config {
	return Config{
		NominalHz:  DefaultNominalHz,
		Mode:       NegToPos,
		MinPeriodS: DefaultMinPeriod,
		MaxPeriodS: DefaultMaxPeriod,
	}
}

// Validate проверяет конфиг; ошибки оборачивают pmu.ErrConfiguration.
func (c Config) Validate() error {
	if c.Epsilon < 0 {
		return fmt.Errorf("%w: epsilon must be >= 0, got %v", pmu.ErrConfiguration, c.Epsilon)
	}
	if c.Mode < NegToPos || c.Mode > Either {
		return fmt.Errorf("%w: unknown crossing mode %d", pmu.ErrConfiguration, c.Mode)
	}
	if c.MinPeriodS <= 0 || c.MaxPeriodS <= 0 {
		return fmt.Errorf("%w: min_period_s and max_period_s must be > 0", pmu.ErrConfiguration)
	}
	if c.MinPeriodS > c.MaxPeriodS {
		return fmt.Errorf("%w: min_period_s %v > max_period_s %v", pmu.ErrConfiguration, c.MinPeriodS, c.MaxPeriodS)
	}
	return nil
}

// Opt — необязательное значение: Valid=false, пока данных нет
type Opt struct {
	V     float64
	Valid bool
}

func some(v float64) Opt { return Opt{V: v, Valid: true} }

// State — потоковое состояние одного канала.
// LastCrossTs >= PrevCrossTs; LastFreq/PrevFreq сдвигаются только вместе с метками переходов.
type State struct {
	PrevVal     Opt
	PrevTs      Opt
	LastCrossTs Opt
	PrevCrossTs Opt
	LastFreq    Opt
	PrevFreq    Opt
}

// Result — выход одного обновления
type Result struct {
	FreqHz   float64
	RocofHzS float64
	Crossed  bool    // переход обнаружен (даже если период отброшен фильтром)
	TCross   float64 // время перехода; имеет смысл только при Crossed
}

// Tracker — потоковая оценка частоты по переходам через ноль для одного канала
type Tracker struct {
	cfg Config
	st  State
}

// NewTracker создаёт Tracker; неверный конфиг — ошибка.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{cfg: cfg}, nil
}

// Config возвращает конфиг
func (t *Tracker) Config() Config { return t.cfg }

// State возвращает копию текущего состояния
func (t *Tracker) State() State { return t.st }

// Settled — true, когда есть хотя бы одна принятая оценка частоты
func (t *Tracker) Settled() bool { return t.st.LastFreq.Valid }

// Reset возвращает состояние к только что созданному
func (t *Tracker) Reset() {
	t.st = State{}
}

// Update подаёт один отсчёт с меткой времени (секунды).
func (t *Tracker) Update(value, ts float64) Result {
	st := &t.st
	var res Result

	if st.PrevVal.Valid && st.PrevTs.Valid {
		res.Crossed, res.TCross = Detect(st.PrevVal.V, st.PrevTs.V, value, ts, t.cfg.Epsilon, t.cfg.Mode)
		if res.Crossed {
			if st.LastCrossTs.Valid {
				period := res.TCross - st.LastCrossTs.V
				if t.cfg.MinPeriodS <= period && period <= t.cfg.MaxPeriodS {
					st.PrevFreq = st.LastFreq
					st.LastFreq = some(1 / period)
					st.PrevCrossTs = st.LastCrossTs
					st.LastCrossTs = some(res.TCross)
				}
			} else {
				st.LastCrossTs = some(res.TCross)
			}
		}
	}

	st.PrevVal = some(value)
	st.PrevTs = some(ts)

	res.FreqHz, res.RocofHzS = t.Current()
	return res
}

// Current возвращает текущую оценку без подачи отсчёта:
// частота — последняя принятая или номинальная; RoCoF — по двум последним переходам, иначе 0.
func (t *Tracker) Current() (freqHz, rocofHzS float64) {
	st := &t.st
	freqHz = t.cfg.NominalHz
	if st.LastFreq.Valid {
		freqHz = st.LastFreq.V
	}
	if st.LastFreq.Valid && st.PrevFreq.Valid && st.LastCrossTs.Valid && st.PrevCrossTs.Valid {
		if dt := st.LastCrossTs.V - st.PrevCrossTs.V; dt > 0 {
			rocofHzS = (st.LastFreq.V - st.PrevFreq.V) / dt
		}
	}
	return freqHz, rocofHzS
}
