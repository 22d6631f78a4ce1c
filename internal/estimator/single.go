package estimator

import (
	"fmt"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/zcd"
)

// SingleConfig — ZCD по одному каналу
type SingleConfig struct {
	Fs      float64
	Channel pmu.Channel
	ZCD     zcd.Config
}

// SinglePhase — оценка частоты по переходам через ноль одного канала
type SinglePhase struct {
	cfg    SingleConfig
	tr     *zcd.Tracker
	lastTs float64
}

// NewSinglePhase проверяет конфиг и создаёт оценщик
func NewSinglePhase(cfg SingleConfig) (*SinglePhase, error) {
	if err := validateFs(cfg.Fs); err != nil {
		return nil, err
	}
	if _, err := pmu.ParseChannel(string(cfg.Channel)); err != nil {
		return nil, err
	}
	tr, err := zcd.NewTracker(cfg.ZCD)
	if err != nil {
		return nil, err
	}
	return &SinglePhase{cfg: cfg, tr: tr}, nil
}

func (e *SinglePhase) Name() string { return fmt.Sprintf("zcd_single(%s)", e.cfg.Channel) }

func (e *SinglePhase) Reset() {
	e.tr.Reset()
	e.lastTs = 0
}

// Update подаёт снимок. Нечисловое значение не портит состояние: выдаётся прошлая оценка с DATA_ERROR.
func (e *SinglePhase) Update(s pmu.Snapshot) (pmu.Output, error) {
	v, err := pmu.Require(s, e.cfg.Channel)
	if err != nil {
		return pmu.Output{}, err
	}
	ts := s.Time()

	var status pmu.Status
	var freq, rocof float64
	if pmu.Finite(v) && pmu.Finite(ts) {
		r := e.tr.Update(v, ts)
		freq, rocof = r.FreqHz, r.RocofHzS
		e.lastTs = ts
	} else {
		status |= pmu.StatusDataError
		freq, rocof = e.tr.Current()
		ts = stamp(ts, e.lastTs)
	}
	if !e.tr.Settled() {
		status |= pmu.StatusPLLUnlocked
	}
	return pmu.Output{
		Phasors:      pmu.InstantPhasors(s, pmu.Channels),
		FrequencyHz:  freq,
		RocofHzS:     rocof,
		TimestampUTC: ts,
		Status:       status,
	}, nil
}
