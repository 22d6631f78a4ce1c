package bench

import (
	"context"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/config"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/logger"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/topology"
)

// ApplyTopology подменяет nodes/adjacency распределённого оценщика графом из etcd.
// Для других типов оценщика ничего не делает.
func ApplyTopology(ctx context.Context, cfg *config.Config, kv topology.Getter) error {
	if cfg.Estimator.Type != config.TypeZCDDistributed || cfg.Topology == nil {
		return nil
	}
	g, err := topology.Load(ctx, kv, cfg.Topology.Prefix)
	if err != nil {
		return err
	}
	cfg.Estimator.Nodes = g.Nodes
	cfg.Estimator.Adjacency = g.Adjacency
	logger.Info("topology: %d nodes from %s", len(g.Nodes), cfg.Topology.Prefix)
	return nil
}

// WatchTopology держит подписку на граф в etcd и при каждом изменении
// перезапускает бенчмарк распределённого оценщика с новым графом.
// Возвращается при отмене ctx; onReport вызывается после каждого прогона.
func WatchTopology(ctx context.Context, cfg *config.Config, st topology.Store, onReport func(*Report)) {
	if cfg.Estimator.Type != config.TypeZCDDistributed || cfg.Topology == nil {
		return
	}
	topology.Watch(ctx, st, cfg.Topology.Prefix, func(g topology.Graph) {
		next := *cfg
		next.Estimator.Nodes = g.Nodes
		next.Estimator.Adjacency = g.Adjacency
		logger.Info("topology changed: %d nodes, rerun", len(g.Nodes))
		rep, err := Run(ctx, &next)
		if err != nil {
			logger.Error("benchmark after topology change: %v", err)
			return
		}
		if onReport != nil {
			onReport(rep)
		}
	})
}
