package consensus

import (
	"fmt"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/config"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/zcd"
)

// Fuse — режим слияния оценок узлов
type Fuse int

const (
	FuseConsensus Fuse = iota
	FuseMean
	FuseNone
)

func (f Fuse) String() string {
	switch f {
	case FuseConsensus:
		return "consensus"
	case FuseMean:
		return "mean"
	case FuseNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseFuse разбирает имя режима; пустая строка — consensus.
func ParseFuse(s string) (Fuse, error) {
	switch s {
	case "", "consensus":
		return FuseConsensus, nil
	case "mean":
		return FuseMean, nil
	case "none":
		return FuseNone, nil
	}
	return 0, fmt.Errorf("%w: unknown fuse mode %q", pmu.ErrConfiguration, s)
}

// Config — узлы, граф и параметры слияния
type Config struct {
	Nodes     []string
	Adjacency map[string][]string
	ZCD       zcd.Config
	Fuse      Fuse
	Alpha     float64 // доля шага консенсуса, (0, 1]
}

// Sample — один распределённый срез: значение каждого узла в момент Timestamp
type Sample struct {
	Timestamp float64
	Values    map[string]float64
}

// Local — оценка одного узла
type Local struct {
	FreqHz   float64
	RocofHzS float64
}

// Fused — результат слияния.
// FreqHz при consensus — среднее консенсусных значений, RoCoF всегда простое среднее.
type Fused struct {
	MeanFreqHz   float64
	MeanRocofHzS float64
	Consensus    map[string]float64 // только в режиме consensus
	FreqHz       float64
	RocofHzS     float64
}

// Result — выход одного шага
type Result struct {
	Timestamp float64
	Local     map[string]Local
	Fused     *Fused // nil в режиме none
	Status    pmu.Status
}

// Engine — распределённый оценщик: трекеры узлов и кэш весов графа
type Engine struct {
	cfg      Config
	graph    *Graph
	weights  Weights
	hasEdges bool
	trackers map[string]*zcd.Tracker
	lastTs   float64

	freq  map[string]float64
	rocof map[string]float64
}

// New проверяет конфиг и создаёт движок; веса считаются один раз.
func New(cfg Config) (*Engine, error) {
	if !(cfg.Alpha > 0 && cfg.Alpha <= 1) {
		return nil, fmt.Errorf("%w: consensus_alpha must be in (0, 1], got %v", pmu.ErrConfiguration, cfg.Alpha)
	}
	if cfg.Fuse < FuseConsensus || cfg.Fuse > FuseNone {
		return nil, fmt.Errorf("%w: unknown fuse mode %d", pmu.ErrConfiguration, cfg.Fuse)
	}
	g, err := NewGraph(cfg.Nodes, cfg.Adjacency)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		trackers: make(map[string]*zcd.Tracker, len(cfg.Nodes)),
		freq:     make(map[string]float64, len(cfg.Nodes)),
		rocof:    make(map[string]float64, len(cfg.Nodes)),
	}
	e.cfg.Nodes = g.Nodes()
	for _, n := range e.cfg.Nodes {
		tr, err := zcd.NewTracker(cfg.ZCD)
		if err != nil {
			return nil, err
		}
		e.trackers[n] = tr
	}
	e.setGraph(g)
	return e, nil
}

// FromConfig собирает движок из секции estimator (тип zcd_distributed)
func FromConfig(c config.EstimatorConfig) (*Engine, error) {
	if !(c.Fs > 0) {
		return nil, fmt.Errorf("%w: fs must be > 0, got %v", pmu.ErrConfiguration, c.Fs)
	}
	zc, err := c.ZCD()
	if err != nil {
		return nil, err
	}
	fuse, err := ParseFuse(c.Fuse)
	if err != nil {
		return nil, err
	}
	return New(Config{
		Nodes:     c.Nodes,
		Adjacency: c.Adjacency,
		ZCD:       zc,
		Fuse:      fuse,
		Alpha:     c.ConsensusAlpha,
	})
}

func (e *Engine) setGraph(g *Graph) {
	e.graph = g
	e.weights = Metropolis(g)
	e.hasEdges = g.Edges() > 0
}

// Name возвращает имя для логов и отчётов
func (e *Engine) Name() string {
	return fmt.Sprintf("zcd_distributed(%d nodes,%s)", len(e.cfg.Nodes), e.cfg.Fuse)
}

// Nodes возвращает узлы в порядке конфигурации
func (e *Engine) Nodes() []string { return e.graph.Nodes() }

// Weights возвращает текущую таблицу весов
func (e *Engine) Weights() Weights { return e.weights }

// SetAdjacency заменяет граф (например, после обновления топологии) и пересчитывает веса.
// Состояние трекеров сохраняется; при ошибке старый граф остаётся.
func (e *Engine) SetAdjacency(adj map[string][]string) error {
	g, err := NewGraph(e.cfg.Nodes, adj)
	if err != nil {
		return err
	}
	e.cfg.Adjacency = adj
	e.setGraph(g)
	return nil
}

// Reset сбрасывает трекеры всех узлов; граф и веса остаются.
func (e *Engine) Reset() {
	for _, tr := range e.trackers {
		tr.Reset()
	}
	e.lastTs = 0
}

// Step подаёт срез во все трекеры, затем сливает оценки.
// Отсутствие значения хотя бы одного узла — pmu.ErrInputContract, состояние не меняется.
func (e *Engine) Step(s Sample) (Result, error) {
	for _, n := range e.cfg.Nodes {
		if _, ok := s.Values[n]; !ok {
			return Result{}, fmt.Errorf("%w: sample has no value for node %q", pmu.ErrInputContract, n)
		}
	}

	res := Result{
		Timestamp: s.Timestamp,
		Local:     make(map[string]Local, len(e.cfg.Nodes)),
	}
	tsOK := pmu.Finite(s.Timestamp)
	if tsOK {
		e.lastTs = s.Timestamp
	} else {
		res.Timestamp = e.lastTs
	}
	for _, n := range e.cfg.Nodes {
		tr := e.trackers[n]
		v := s.Values[n]
		var f, r float64
		if tsOK && pmu.Finite(v) {
			u := tr.Update(v, s.Timestamp)
			f, r = u.FreqHz, u.RocofHzS
		} else {
			res.Status |= pmu.StatusDataError
			f, r = tr.Current()
		}
		if !tr.Settled() {
			res.Status |= pmu.StatusPLLUnlocked
		}
		e.freq[n], e.rocof[n] = f, r
		res.Local[n] = Local{FreqHz: f, RocofHzS: r}
	}

	if e.cfg.Fuse == FuseNone {
		return res, nil
	}
	fu := &Fused{
		MeanFreqHz:   e.mean(e.freq),
		MeanRocofHzS: e.mean(e.rocof),
	}
	fu.FreqHz, fu.RocofHzS = fu.MeanFreqHz, fu.MeanRocofHzS
	if e.cfg.Fuse == FuseConsensus {
		fu.Consensus = e.consensus(e.freq, fu.MeanFreqHz)
		fu.FreqHz = e.mean(fu.Consensus)
	}
	res.Fused = fu
	return res, nil
}

// mean суммирует в порядке узлов
func (e *Engine) mean(vals map[string]float64) float64 {
	var s float64
	for _, n := range e.cfg.Nodes {
		s += vals[n]
	}
	return s / float64(len(e.cfg.Nodes))
}

// consensus — один шаг: fused_i = (1-α)·x_i + α·(w_ii·x_i + Σ w_ij·x_j).
// Граф без рёбер — всем узлам простое среднее.
func (e *Engine) consensus(local map[string]float64, mean float64) map[string]float64 {
	out := make(map[string]float64, len(local))
	if !e.hasEdges {
		for _, n := range e.cfg.Nodes {
			out[n] = mean
		}
		return out
	}
	a := e.cfg.Alpha
	for _, i := range e.cfg.Nodes {
		acc := e.weights.Self[i] * local[i]
		for _, w := range e.weights.Neighbor[i] {
			acc += w.W * local[w.Node]
		}
		out[i] = (1-a)*local[i] + a*acc
	}
	return out
}

// Output — заголовочная запись PMU: слитые значения, а в режиме none — оценка первого узла.
func (r Result) Output(nodes []string) pmu.Output {
	out := pmu.Output{TimestampUTC: r.Timestamp, Status: r.Status}
	switch {
	case r.Fused != nil:
		out.FrequencyHz, out.RocofHzS = r.Fused.FreqHz, r.Fused.RocofHzS
	case len(nodes) > 0:
		l := r.Local[nodes[0]]
		out.FrequencyHz, out.RocofHzS = l.FreqHz, l.RocofHzS
	}
	return out
}
