package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/zcd"
	"gopkg.in/yaml.v3"
)

// Типы оценщиков
const (
	TypeZCDSingle      = "zcd_single"
	TypeZCDMulti       = "zcd_multi"
	TypeIpDFT          = "ipdft"
	TypeZCDDistributed = "zcd_distributed"
)

// Виды синтетических сценариев
const (
	KindClean    = "clean"
	KindStep     = "step"
	KindRampStep = "ramp_step"
)

// Config — конфигурация pmu-freq
type Config struct {
	Estimator EstimatorConfig `yaml:"estimator"`
	Scenarios []Scenario      `yaml:"scenarios"`

	// Живой вход и топология из etcd — опционально
	Source   *Source   `yaml:"source"`
	Topology *Topology `yaml:"topology"`

	Output  OutputConfig  `yaml:"output"`
	Metrics MetricsConfig `yaml:"metrics"`
	Clock   ClockConfig   `yaml:"clock"`
}

// EstimatorConfig — поверхность конфигурации оценщика; поля, не нужные выбранному типу, игнорируются.
type EstimatorConfig struct {
	Type           string              `yaml:"type"`
	Fs             float64             `yaml:"fs"` // обязателен, дефолта нет
	FrameLen       int                 `yaml:"frame_len"`
	Channel        string              `yaml:"channel"`
	Channels       []string            `yaml:"channels"`
	NominalHz      float64             `yaml:"nominal_hz"`
	Epsilon        float64             `yaml:"epsilon"`
	Mode           string              `yaml:"mode"`
	MinPeriodS     float64             `yaml:"min_period_s"`
	MaxPeriodS     float64             `yaml:"max_period_s"`
	Agg            string              `yaml:"agg"`
	Nodes          []string            `yaml:"nodes"`
	Adjacency      map[string][]string `yaml:"adjacency"`
	Fuse           string              `yaml:"fuse"`
	ConsensusAlpha float64             `yaml:"consensus_alpha"`
}

// Scenario — синтетический сигнал для бенчмарка
type Scenario struct {
	Name     string  `yaml:"name"`
	Kind     string  `yaml:"kind"` // clean, step, ramp_step
	F0       float64 `yaml:"f0"`
	FStep    float64 `yaml:"f_step"`
	Df       float64 `yaml:"df"` // clean: линейный уход частоты за всю длительность
	TStep    float64 `yaml:"t_step"`
	TBack    float64 `yaml:"t_back"`
	Duration float64 `yaml:"duration"`
	Rocof    float64 `yaml:"rocof"` // ramp_step: скорость рампы, Гц/с
}

// Source — живой источник отсчётов (АЦП на последовательном порту)
type Source struct {
	Protocol string `yaml:"protocol"` // serial
	Device   string `yaml:"device"`
	Baud     int    `yaml:"baud"`
}

// Topology — где в etcd лежит граф узлов
type Topology struct {
	Endpoints   []string `yaml:"endpoints"`
	Prefix      string   `yaml:"prefix"`
	DialTimeout string   `yaml:"dial_timeout"` // например "5s"
}

// OutputConfig — куда писать результаты
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	LogInterval string `yaml:"log_interval"` // период вывода оценок в живом режиме
}

// MetricsConfig — HTTP /metrics; пустой addr — выключено
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// ClockConfig — проверка синхронизации системных часов
type ClockConfig struct {
	CheckSync bool `yaml:"check_sync"`
}

// Default возвращает конфиг по умолчанию: ZCD по одной фазе на 5 кГц и сценарий скачка частоты.
func Default() *Config {
	c := &Config{
		Estimator: EstimatorConfig{
			Type: TypeZCDSingle,
			Fs:   5000,
		},
		Scenarios: []Scenario{{
			Name:     "s0_step",
			Kind:     KindStep,
			F0:       60,
			FStep:    59.5,
			TStep:    1.0,
			TBack:    2.0,
			Duration: 4.0,
		}},
		Output: OutputConfig{
			Dir:         "data/results",
			LogInterval: "1s",
		},
		Clock: ClockConfig{CheckSync: true},
	}
	applyEstimatorDefaults(&c.Estimator)
	return c
}

// Load читает конфиг из YAML
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	return &c, nil
}

// ZCD собирает параметры детектора переходов
func (e EstimatorConfig) ZCD() (zcd.Config, error) {
	mode, err := zcd.ParseMode(e.Mode)
	if err != nil {
		return zcd.Config{}, fmt.Errorf("%w: %v", pmu.ErrConfiguration, err)
	}
	c := zcd.Config{
		Epsilon:    e.Epsilon,
		NominalHz:  e.NominalHz,
		Mode:       mode,
		MinPeriodS: e.MinPeriodS,
		MaxPeriodS: e.MaxPeriodS,
	}
	return c, c.Validate()
}

// DialTimeoutDuration разбирает dial_timeout; пусто — 5s.
func (t *Topology) DialTimeoutDuration() (time.Duration, error) {
	if t.DialTimeout == "" {
		return 5 * time.Second, nil
	}
	d, err := time.ParseDuration(t.DialTimeout)
	if err != nil {
		return 0, fmt.Errorf("topology dial_timeout: %w", err)
	}
	return d, nil
}

// LogIntervalDuration разбирает log_interval; пусто или ошибка — 1s.
func (o OutputConfig) LogIntervalDuration() time.Duration {
	d, err := time.ParseDuration(o.LogInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

func applyEstimatorDefaults(e *EstimatorConfig) {
	if e.Type == "" {
		e.Type = TypeZCDSingle
	}
	if e.FrameLen == 0 {
		e.FrameLen = 50
	}
	if e.Channel == "" {
		e.Channel = string(pmu.V1)
	}
	if len(e.Channels) == 0 {
		e.Channels = []string{string(pmu.V1), string(pmu.V2), string(pmu.V3)}
	}
	if e.NominalHz == 0 {
		e.NominalHz = zcd.DefaultNominalHz
	}
	if e.Mode == "" {
		e.Mode = zcd.NegToPos.String()
	}
	if e.MinPeriodS == 0 {
		e.MinPeriodS = zcd.DefaultMinPeriod
	}
	if e.MaxPeriodS == 0 {
		e.MaxPeriodS = zcd.DefaultMaxPeriod
	}
	if e.Agg == "" {
		e.Agg = "median"
	}
	if e.Fuse == "" {
		e.Fuse = "consensus"
	}
	if e.ConsensusAlpha == 0 {
		e.ConsensusAlpha = 1.0
	}
}

func applyScenarioDefaults(s *Scenario) {
	if s.Kind == "" {
		s.Kind = KindStep
	}
	if s.F0 == 0 {
		s.F0 = 60
	}
	switch s.Kind {
	case KindStep, KindRampStep:
		if s.FStep == 0 {
			s.FStep = 59.5
		}
		if s.TStep == 0 && s.TBack == 0 {
			s.TStep, s.TBack = 1.0, 2.0
		}
		if s.Duration == 0 {
			s.Duration = s.TBack + 2.0
		}
		if s.Kind == KindRampStep && s.Rocof == 0 {
			s.Rocof = 1.0
		}
	default:
		if s.Duration == 0 {
			s.Duration = 5.0
		}
	}
	if s.Name == "" {
		s.Name = s.Kind
	}
}

func applyDefaults(c *Config) {
	d := Default()
	applyEstimatorDefaults(&c.Estimator)
	if len(c.Scenarios) == 0 {
		c.Scenarios = d.Scenarios
	}
	for i := range c.Scenarios {
		applyScenarioDefaults(&c.Scenarios[i])
	}
	if c.Source != nil {
		if c.Source.Protocol == "" {
			c.Source.Protocol = "serial"
		}
		if c.Source.Baud == 0 {
			c.Source.Baud = 115200
		}
	}
	if c.Topology != nil && c.Topology.Prefix == "" {
		c.Topology.Prefix = "/pmu/topology/"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = d.Output.Dir
	}
	if c.Output.LogInterval == "" {
		c.Output.LogInterval = d.Output.LogInterval
	}
}
