// pmu-freq — оценка частоты и RoCoF сети по отсчётам напряжения (PMU).
//
// Оценщики: ZCD по одной фазе, ZCD по трём фазам (median/mean), IpDFT по кадру,
// распределённый ZCD с консенсусом Метрополиса–Гастингса по графу узлов.
//
// Использование:
//
//	pmu-freq -config pmu-freq.yml               — бенчмарк по сценариям, JSON в output.dir
//	pmu-freq -live -config pmu-freq.yml         — живой вход с последовательного порта, JSON Lines в stdout
//	pmu-freq -watch -config pmu-freq.yml        — распределённый бенчмарк, повтор при смене графа в etcd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/config"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/logger"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/source"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/telemetry"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/topology"
	"github.com/shiwa/timecard-mini/pmu-freq/pkg/bench"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигу (по умолчанию pmu-freq.yml)")
	estType := flag.String("estimator", "", "тип оценщика: zcd_single, zcd_multi, ipdft, zcd_distributed (переопределяет config)")
	fs := flag.Float64("fs", 0, "частота дискретизации, Гц (переопределяет config)")
	outDir := flag.String("out", "", "каталог результатов (переопределяет config)")
	live := flag.Bool("live", false, "живой вход из секции source вместо сценариев")
	watch := flag.Bool("watch", false, "zcd_distributed: перезапускать бенчмарк при изменении графа в etcd")
	metricsAddr := flag.String("metrics-addr", "", "адрес HTTP /metrics, например :9110 (переопределяет config)")
	noRecords := flag.Bool("no-records", false, "-live: не писать записи в stdout, только лог и метрики")
	quiet := flag.Bool("quiet", false, "меньше вывода")
	debug := flag.Bool("debug", false, "отладочный вывод")
	flag.Parse()

	logger.Init(os.Stderr, *quiet, *debug)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *estType != "" {
		cfg.Estimator.Type = *estType
	}
	if *fs > 0 {
		cfg.Estimator.Fs = *fs
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	ctx, cancel := signalContext()
	defer cancel()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := telemetry.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Error("metrics: %v", err)
			}
		}()
		logger.Info("metrics on %s/metrics", cfg.Metrics.Addr)
	}

	var kv *clientv3.Client
	if cfg.Topology != nil && cfg.Estimator.Type == config.TypeZCDDistributed {
		kv, err = dialTopology(ctx, cfg)
		if err != nil {
			log.Fatalf("topology: %v", err)
		}
		defer kv.Close()
	}

	switch {
	case *live:
		err = runLive(ctx, cfg, !*noRecords)
	case *watch:
		if kv == nil {
			log.Fatal("-watch нужен estimator.type=zcd_distributed и секция topology")
		}
		if err = runBench(ctx, cfg); err == nil {
			bench.WatchTopology(ctx, cfg, kv, printReport)
		}
	default:
		err = runBench(ctx, cfg)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = "pmu-freq.yml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && !explicit {
		return config.Default(), nil
	}
	return config.Load(path)
}

// signalContext отменяется по SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("получен сигнал %v, завершение...", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// dialTopology подключается к etcd и подставляет граф в конфиг оценщика
func dialTopology(ctx context.Context, cfg *config.Config) (*clientv3.Client, error) {
	cli, err := topology.Dial(cfg.Topology)
	if err != nil {
		return nil, err
	}
	if err := bench.ApplyTopology(ctx, cfg, cli); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return cli, nil
}

func runBench(ctx context.Context, cfg *config.Config) error {
	rep, err := bench.Run(ctx, cfg)
	if err != nil {
		return err
	}
	printReport(rep)
	return nil
}

func printReport(rep *bench.Report) {
	if logger.Quiet {
		return
	}
	for _, name := range slices.Sorted(maps.Keys(rep.Results)) {
		for _, r := range rep.Results[name] {
			rmse := "n/a"
			if r.RMSE != nil {
				rmse = fmt.Sprintf("%.6f Hz", *r.RMSE)
			}
			fmt.Printf("%-16s %-20s n=%-7d rmse=%s\n", name, r.Name, r.NSamples, rmse)
		}
	}
	fmt.Printf("результаты: %s\n", rep.Dir)
}

func runLive(ctx context.Context, cfg *config.Config, records bool) error {
	src, err := source.NewFromConfig(cfg.Source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	defer src.Close()
	opts := bench.LiveOptions{}
	if records {
		opts.Out = os.Stdout
	}
	return bench.RunLive(ctx, cfg, src, opts)
}
