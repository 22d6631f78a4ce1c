// Package estimator — оценщики частоты и RoCoF по одному снимку: ZCD по одной фазе, ZCD по нескольким
// фазам с агрегированием и IpDFT по скользящему окну.
package estimator

import (
	"fmt"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/config"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
)

// Estimator — общий контракт всех вариантов.
// Update не делает ввода-вывода; ошибка только при нарушении входного контракта (pmu.ErrInputContract).
type Estimator interface {
	Name() string
	Update(s pmu.Snapshot) (pmu.Output, error)
	Reset()
}

func validateFs(fs float64) error {
	if !(fs > 0) {
		return fmt.Errorf("%w: fs must be > 0, got %v", pmu.ErrConfiguration, fs)
	}
	return nil
}

// stamp заменяет нечисловую метку времени последней принятой
func stamp(ts, last float64) float64 {
	if pmu.Finite(ts) {
		return ts
	}
	return last
}

// New создаёт оценщик по секции estimator.
// zcd_distributed работает по узлам, а не по каналам: его собирает consensus.FromConfig.
func New(c config.EstimatorConfig) (Estimator, error) {
	switch c.Type {
	case config.TypeZCDSingle:
		zc, err := c.ZCD()
		if err != nil {
			return nil, err
		}
		ch, err := pmu.ParseChannel(c.Channel)
		if err != nil {
			return nil, err
		}
		return NewSinglePhase(SingleConfig{Fs: c.Fs, Channel: ch, ZCD: zc})
	case config.TypeZCDMulti:
		zc, err := c.ZCD()
		if err != nil {
			return nil, err
		}
		chs, err := pmu.ParseChannels(c.Channels)
		if err != nil {
			return nil, err
		}
		agg, err := ParseAggregation(c.Agg)
		if err != nil {
			return nil, err
		}
		return NewMultiPhase(MultiConfig{Fs: c.Fs, Channels: chs, Agg: agg, ZCD: zc})
	case config.TypeIpDFT:
		ch, err := pmu.ParseChannel(c.Channel)
		if err != nil {
			return nil, err
		}
		return NewIpDFT(IpDFTConfig{Fs: c.Fs, FrameLen: c.FrameLen, Channel: ch, NominalHz: c.NominalHz})
	case config.TypeZCDDistributed:
		return nil, fmt.Errorf("%w: %s is built by the consensus engine", pmu.ErrConfiguration, c.Type)
	}
	return nil, fmt.Errorf("%w: unknown estimator type %q", pmu.ErrConfiguration, c.Type)
}
