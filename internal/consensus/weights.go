package consensus

// Weight — вес ребра i→j
type Weight struct {
	Node string
	W    float64
}

// Weights — таблица весов Метрополиса–Гастингса: собственный вес и веса соседей каждого узла.
type Weights struct {
	Self     map[string]float64
	Neighbor map[string][]Weight // в порядке Graph.Neighbors
}

// Metropolis считает веса: w_ij = 1/(1+max(deg i, deg j)) для соседей, w_ii = max(0, 1-Σw_ij).
func Metropolis(g *Graph) Weights {
	w := Weights{
		Self:     make(map[string]float64, len(g.names)),
		Neighbor: make(map[string][]Weight, len(g.names)),
	}
	for _, i := range g.names {
		di := g.Degree(i)
		var sum float64
		neigh := g.Neighbors(i)
		row := make([]Weight, 0, len(neigh))
		for _, j := range neigh {
			wij := 1 / (1 + float64(max(di, g.Degree(j))))
			row = append(row, Weight{Node: j, W: wij})
			sum += wij
		}
		w.Neighbor[i] = row
		w.Self[i] = max(0, 1-sum)
	}
	return w
}

// At возвращает w_ij; 0, если ребра нет.
func (w Weights) At(i, j string) float64 {
	if i == j {
		return w.Self[i]
	}
	for _, x := range w.Neighbor[i] {
		if x.Node == j {
			return x.W
		}
	}
	return 0
}

// RowSum — сумма строки i (должна быть 1)
func (w Weights) RowSum(i string) float64 {
	s := w.Self[i]
	for _, x := range w.Neighbor[i] {
		s += x.W
	}
	return s
}
