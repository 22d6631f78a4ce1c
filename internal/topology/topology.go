// Package topology — граф узлов распределённой оценки из etcd.
// Ключ <prefix><node>, значение — соседи через запятую (пусто — узел без соседей).
package topology

import (
	"context"
	"fmt"
	"slices"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/config"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/logger"
)

// Getter — чтение по префиксу (clientv3.KV)
type Getter interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
}

// Store — чтение и подписка на изменения (*clientv3.Client)
type Store interface {
	Getter
	Watch(ctx context.Context, key string, opts ...clientv3.OpOption) clientv3.WatchChan
}

// Graph — узлы и списки соседей
type Graph struct {
	Nodes     []string
	Adjacency map[string][]string
}

// Dial подключается к etcd по секции topology
func Dial(c *config.Topology) (*clientv3.Client, error) {
	if c == nil || len(c.Endpoints) == 0 {
		return nil, fmt.Errorf("topology: endpoints required")
	}
	timeout, err := c.DialTimeoutDuration()
	if err != nil {
		return nil, err
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   c.Endpoints,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd connect: %w", err)
	}
	return cli, nil
}

// Load читает граф из-под prefix; узлы упорядочены по имени.
func Load(ctx context.Context, kv Getter, prefix string) (Graph, error) {
	resp, err := kv.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return Graph{}, fmt.Errorf("etcd get %s: %w", prefix, err)
	}
	g := Graph{Adjacency: make(map[string][]string, len(resp.Kvs))}
	for _, item := range resp.Kvs {
		node := strings.TrimPrefix(string(item.Key), prefix)
		if node == "" || strings.Contains(node, "/") {
			logger.Debug("topology: skip key %q", item.Key)
			continue
		}
		var neigh []string
		for _, n := range strings.Split(string(item.Value), ",") {
			if n = strings.TrimSpace(n); n != "" {
				neigh = append(neigh, n)
			}
		}
		g.Nodes = append(g.Nodes, node)
		g.Adjacency[node] = neigh
	}
	if len(g.Nodes) == 0 {
		return Graph{}, fmt.Errorf("topology: no nodes under %s", prefix)
	}
	slices.Sort(g.Nodes)
	return g, nil
}

// Watch перечитывает граф при каждом изменении под prefix и передаёт его в apply.
// Возвращается при отмене ctx или закрытии канала подписки.
func Watch(ctx context.Context, st Store, prefix string, apply func(Graph)) {
	wch := st.Watch(ctx, prefix, clientv3.WithPrefix())
	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-wch:
			if !ok {
				return
			}
			if err := resp.Err(); err != nil {
				logger.Error("topology watch: %v", err)
				continue
			}
			g, err := Load(ctx, st, prefix)
			if err != nil {
				logger.Error("topology reload: %v", err)
				continue
			}
			apply(g)
		}
	}
}
