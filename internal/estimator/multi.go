package estimator

import (
	"fmt"
	"strings"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/zcd"
)

// MultiConfig — ZCD по нескольким каналам с агрегированием
type MultiConfig struct {
	Fs       float64
	Channels []pmu.Channel // порядок задаёт порядок трекеров
	Agg      Aggregation
	ZCD      zcd.Config
}

// MultiPhase — по трекеру на канал; частота и RoCoF агрегируются независимо.
type MultiPhase struct {
	cfg      MultiConfig
	trackers []*zcd.Tracker
	lastTs   float64

	vals  []float64
	freqs []float64
	rocs  []float64
}

// NewMultiPhase проверяет конфиг и создаёт оценщик
func NewMultiPhase(cfg MultiConfig) (*MultiPhase, error) {
	if err := validateFs(cfg.Fs); err != nil {
		return nil, err
	}
	names := make([]string, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		names[i] = string(ch)
	}
	if _, err := pmu.ParseChannels(names); err != nil {
		return nil, err
	}
	if cfg.Agg != AggMedian && cfg.Agg != AggMean {
		return nil, fmt.Errorf("%w: unknown aggregation %d", pmu.ErrConfiguration, cfg.Agg)
	}
	cfg.Channels = append([]pmu.Channel(nil), cfg.Channels...)

	e := &MultiPhase{
		cfg:      cfg,
		trackers: make([]*zcd.Tracker, len(cfg.Channels)),
		vals:     make([]float64, len(cfg.Channels)),
		freqs:    make([]float64, len(cfg.Channels)),
		rocs:     make([]float64, len(cfg.Channels)),
	}
	for i := range e.trackers {
		tr, err := zcd.NewTracker(cfg.ZCD)
		if err != nil {
			return nil, err
		}
		e.trackers[i] = tr
	}
	return e, nil
}

func (e *MultiPhase) Name() string {
	names := make([]string, len(e.cfg.Channels))
	for i, ch := range e.cfg.Channels {
		names[i] = string(ch)
	}
	return fmt.Sprintf("zcd_multi(%s,%s)", strings.Join(names, "+"), e.cfg.Agg)
}

func (e *MultiPhase) Reset() {
	for _, tr := range e.trackers {
		tr.Reset()
	}
	e.lastTs = 0
}

// Update подаёт снимок во все трекеры. Если нет хотя бы одного канала — ошибка, ни один трекер не тронут.
func (e *MultiPhase) Update(s pmu.Snapshot) (pmu.Output, error) {
	for i, ch := range e.cfg.Channels {
		v, err := pmu.Require(s, ch)
		if err != nil {
			return pmu.Output{}, err
		}
		e.vals[i] = v
	}
	ts := s.Time()
	tsOK := pmu.Finite(ts)

	var status pmu.Status
	unlocked := false
	for i, tr := range e.trackers {
		if tsOK && pmu.Finite(e.vals[i]) {
			r := tr.Update(e.vals[i], ts)
			e.freqs[i], e.rocs[i] = r.FreqHz, r.RocofHzS
		} else {
			status |= pmu.StatusDataError
			e.freqs[i], e.rocs[i] = tr.Current()
		}
		if !tr.Settled() {
			unlocked = true
		}
	}
	if unlocked {
		status |= pmu.StatusPLLUnlocked
	}
	if tsOK {
		e.lastTs = ts
	} else {
		ts = e.lastTs
	}

	return pmu.Output{
		Phasors:      pmu.InstantPhasors(s, pmu.Channels),
		FrequencyHz:  Aggregate(e.freqs, e.cfg.Agg),
		RocofHzS:     Aggregate(e.rocs, e.cfg.Agg),
		TimestampUTC: ts,
		Status:       status,
	}, nil
}
