package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/clockstat"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/config"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/estimator"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/logger"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/source"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/telemetry"
)

// SyncChecker сообщает, синхронизированы ли часы хоста
type SyncChecker func() (bool, error)

// LiveOptions — необязательные параметры живого цикла
type LiveOptions struct {
	Out       io.Writer   // записи в формате JSON Lines; nil — не писать
	CheckSync SyncChecker // nil — clockstat.Synced
}

// RunLive читает src до конца потока или отмены ctx и оценивает частоту по каждому снимку.
// Пока часы хоста не синхронизированы, в статус добавляется CLOCK_NOT_SYNCED.
func RunLive(ctx context.Context, cfg *config.Config, src source.SampleSource, opts LiveOptions) error {
	if cfg.Estimator.Type == config.TypeZCDDistributed {
		return fmt.Errorf("%w: %s needs per-node samples, not a channel source", pmu.ErrConfiguration, cfg.Estimator.Type)
	}
	est, err := estimator.New(cfg.Estimator)
	if err != nil {
		return fmt.Errorf("estimator: %w", err)
	}
	check := opts.CheckSync
	if check == nil {
		check = clockstat.Synced
	}
	interval := cfg.Output.LogIntervalDuration()

	// Close прерывает блокирующее чтение источника
	stop := context.AfterFunc(ctx, func() { _ = src.Close() })
	defer stop()

	var enc *json.Encoder
	if opts.Out != nil {
		enc = json.NewEncoder(opts.Out)
	}
	synced := true
	refreshSync := func() {
		if !cfg.Clock.CheckSync {
			return
		}
		ok, err := check()
		if err != nil {
			logger.Error("clock status: %v", err)
			return
		}
		if ok != synced {
			logger.Info("host clock synced=%v", ok)
		}
		synced = ok
	}
	refreshSync()
	logger.Info("live: source=%s estimator=%s clock granularity=%dns", src.Name(), est.Name(), clockstat.GranularityNs())

	var n, rejected int
	lastLog := time.Now()
	for {
		snap, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				logger.Info("live: %s ended after %d records (%d rejected)", src.Name(), n, rejected)
				return nil
			}
			return err
		}

		start := time.Now()
		out, err := est.Update(snap)
		if err != nil {
			if errors.Is(err, pmu.ErrInputContract) {
				rejected++
				telemetry.InputError(est.Name())
				logger.Debug("live: %v", err)
				continue
			}
			return err
		}
		if !synced {
			out.Status |= pmu.StatusClockNotSynced
		}
		telemetry.Observe(est.Name(), out, time.Since(start))
		n++
		if enc != nil {
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
		}

		if now := time.Now(); now.Sub(lastLog) >= interval {
			lastLog = now
			refreshSync()
			logger.Info("f=%.4f Hz rocof=%.3f Hz/s status=%s", out.FrequencyHz, out.RocofHzS, out.Status)
		}
	}
}
