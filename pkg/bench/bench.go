// Package bench — прогон оценщика по синтетическим сценариям (отчёт в JSON) и живой цикл по источнику отсчётов.
package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/config"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/consensus"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/estimator"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/evaluation"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/logger"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/scenario"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/telemetry"
)

// ctx проверяется раз в столько отсчётов
const cancelCheckEvery = 1024

// Result — прогон одного оценщика по одному сценарию
type Result struct {
	Name     string       `json:"name"`
	NSamples int          `json:"n_samples"`
	RMSE     *float64     `json:"rmse"` // null, если сравнивать нечего
	FHat     []float64    `json:"f_hat"`
	Records  []pmu.Output `json:"records"`
}

// SummaryEntry — строка summary.json
type SummaryEntry struct {
	Name     string   `json:"name"`
	NSamples int      `json:"n_samples"`
	RMSE     *float64 `json:"rmse"`
}

// Summary — summary.json
type Summary struct {
	RunID     string                    `json:"run_id"`
	Started   time.Time                 `json:"started"`
	Fs        float64                   `json:"fs"`
	Estimator string                    `json:"estimator"`
	Scenarios map[string][]SummaryEntry `json:"scenarios"`
}

// Report — итог Run
type Report struct {
	Dir     string
	Summary Summary
	Results map[string][]Result
}

// runner — один шаг оценщика по отсчёту k сигнала
type runner interface {
	name() string
	reset()
	prepare(sig *scenario.Signal)
	step(k int) (pmu.Output, error)
}

type snapshotRunner struct {
	est    estimator.Estimator
	inputs []pmu.Input
}

func (r *snapshotRunner) name() string                 { return r.est.Name() }
func (r *snapshotRunner) reset()                       { r.est.Reset() }
func (r *snapshotRunner) prepare(sig *scenario.Signal) { r.inputs = sig.Inputs() }
func (r *snapshotRunner) step(k int) (pmu.Output, error) {
	return r.est.Update(r.inputs[k])
}

type distributedRunner struct {
	eng     *consensus.Engine
	samples []consensus.Sample
}

func (r *distributedRunner) name() string { return r.eng.Name() }
func (r *distributedRunner) reset()       { r.eng.Reset() }
func (r *distributedRunner) prepare(sig *scenario.Signal) {
	r.samples = sig.NodeSamples(r.eng.Nodes())
}
func (r *distributedRunner) step(k int) (pmu.Output, error) {
	res, err := r.eng.Step(r.samples[k])
	if err != nil {
		return pmu.Output{}, err
	}
	return res.Output(r.eng.Nodes()), nil
}

func newRunner(c config.EstimatorConfig) (runner, error) {
	if c.Type == config.TypeZCDDistributed {
		eng, err := consensus.FromConfig(c)
		if err != nil {
			return nil, err
		}
		return &distributedRunner{eng: eng}, nil
	}
	est, err := estimator.New(c)
	if err != nil {
		return nil, err
	}
	return &snapshotRunner{est: est}, nil
}

// Run прогоняет оценщик по всем сценариям конфига и пишет
// <output.dir>/benchmark_<run-id>/jsons/<scenario>.json и summary.json.
func Run(ctx context.Context, cfg *config.Config) (*Report, error) {
	r, err := newRunner(cfg.Estimator)
	if err != nil {
		return nil, fmt.Errorf("estimator: %w", err)
	}
	runID := uuid.New().String()
	root := filepath.Join(cfg.Output.Dir, "benchmark_"+runID)
	jsonDir := filepath.Join(root, "jsons")
	if err := os.MkdirAll(jsonDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	rep := &Report{
		Dir: root,
		Summary: Summary{
			RunID:     runID,
			Started:   time.Now().UTC(),
			Fs:        cfg.Estimator.Fs,
			Estimator: r.name(),
			Scenarios: make(map[string][]SummaryEntry, len(cfg.Scenarios)),
		},
		Results: make(map[string][]Result, len(cfg.Scenarios)),
	}
	logger.Info("benchmark %s: estimator=%s fs=%v scenarios=%d", runID, r.name(), cfg.Estimator.Fs, len(cfg.Scenarios))

	for _, sc := range cfg.Scenarios {
		sig, err := scenario.FromConfig(sc, cfg.Estimator.Fs)
		if err != nil {
			return nil, err
		}
		logger.Info("scenario %s: %d samples", sig.Name, sig.Len())
		res, err := runScenario(ctx, r, sig)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sig.Name, err)
		}
		if res.RMSE != nil {
			telemetry.BenchmarkRMSE.WithLabelValues(sig.Name, res.Name).Set(*res.RMSE)
			logger.Info("scenario %s: rmse=%.6f Hz", sig.Name, *res.RMSE)
		}

		results := []Result{res}
		rep.Results[sig.Name] = results
		rep.Summary.Scenarios[sig.Name] = []SummaryEntry{{Name: res.Name, NSamples: res.NSamples, RMSE: res.RMSE}}
		if err := writeJSON(filepath.Join(jsonDir, sig.Name+".json"), results); err != nil {
			return nil, err
		}
	}

	if err := writeJSON(filepath.Join(root, "summary.json"), rep.Summary); err != nil {
		return nil, err
	}
	logger.Info("summary saved to %s", filepath.Join(root, "summary.json"))
	return rep, nil
}

func runScenario(ctx context.Context, r runner, sig *scenario.Signal) (Result, error) {
	r.reset()
	r.prepare(sig)
	name := r.name()
	res := Result{
		Name:     name,
		NSamples: sig.Len(),
		FHat:     make([]float64, sig.Len()),
		Records:  make([]pmu.Output, sig.Len()),
	}
	for k := 0; k < sig.Len(); k++ {
		if k%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		start := time.Now()
		out, err := r.step(k)
		if err != nil {
			return Result{}, err
		}
		telemetry.Observe(name, out, time.Since(start))
		res.FHat[k] = out.FrequencyHz
		res.Records[k] = out
	}
	rmse, err := evaluation.FrequencyError(res.FHat, sig.Freq)
	switch {
	case errors.Is(err, evaluation.ErrNoSamples):
	case err != nil:
		return Result{}, err
	default:
		res.RMSE = &rmse
	}
	return res, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
