// Package consensus — распределённая оценка частоты: ZCD-трекер на каждом узле и один шаг
// консенсуса с весами Метрополиса–Гастингса по графу узлов.
package consensus

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
)

// Graph — ориентированный граф смежности узлов; id узла — его индекс в списке nodes.
// Список соседей узла i задаётся adjacency[i]; обратное ребро не подразумевается.
type Graph struct {
	g     *simple.DirectedGraph
	ids   map[string]int64
	names []string
}

// NewGraph строит граф. Пустой список узлов, дубликаты, неизвестные узлы и петли — ошибка конфигурации.
// Повторный сосед в списке учитывается один раз.
func NewGraph(nodes []string, adjacency map[string][]string) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: empty node list", pmu.ErrConfiguration)
	}
	gr := &Graph{
		g:     simple.NewDirectedGraph(),
		ids:   make(map[string]int64, len(nodes)),
		names: make([]string, 0, len(nodes)),
	}
	for _, n := range nodes {
		if n == "" {
			return nil, fmt.Errorf("%w: empty node id", pmu.ErrConfiguration)
		}
		if _, dup := gr.ids[n]; dup {
			return nil, fmt.Errorf("%w: duplicate node %q", pmu.ErrConfiguration, n)
		}
		id := int64(len(gr.names))
		gr.ids[n] = id
		gr.names = append(gr.names, n)
		gr.g.AddNode(simple.Node(id))
	}
	for from, neigh := range adjacency {
		fid, ok := gr.ids[from]
		if !ok {
			return nil, fmt.Errorf("%w: adjacency names unknown node %q", pmu.ErrConfiguration, from)
		}
		for _, to := range neigh {
			tid, ok := gr.ids[to]
			if !ok {
				return nil, fmt.Errorf("%w: adjacency of %q names unknown node %q", pmu.ErrConfiguration, from, to)
			}
			if tid == fid {
				return nil, fmt.Errorf("%w: self-loop on node %q", pmu.ErrConfiguration, from)
			}
			gr.g.SetEdge(gr.g.NewEdge(simple.Node(fid), simple.Node(tid)))
		}
	}
	return gr, nil
}

// Nodes возвращает узлы в порядке конфигурации
func (gr *Graph) Nodes() []string { return slices.Clone(gr.names) }

// Edges — число рёбер
func (gr *Graph) Edges() int { return gr.g.Edges().Len() }

// Neighbors возвращает соседей узла в порядке конфигурации (порядок важен для суммирования).
func (gr *Graph) Neighbors(node string) []string {
	id, ok := gr.ids[node]
	if !ok {
		return nil
	}
	from := graph.NodesOf(gr.g.From(id))
	ids := make([]int64, len(from))
	for i, n := range from {
		ids[i] = n.ID()
	}
	slices.Sort(ids)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = gr.names[id]
	}
	return out
}

// Degree — max(1, число соседей)
func (gr *Graph) Degree(node string) int {
	id, ok := gr.ids[node]
	if !ok {
		return 1
	}
	return max(1, gr.g.From(id).Len())
}
