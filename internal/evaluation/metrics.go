// Package evaluation — метрики качества оценок частоты относительно истинного закона.
package evaluation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrNoSamples — после маскирования NaN сравнивать нечего
var ErrNoSamples = errors.New("no comparable samples")

// FrequencyError — СКО оценки от истины. Пары, где хотя бы одно значение NaN, пропускаются.
// Разная длина — ошибка.
func FrequencyError(est, truth []float64) (float64, error) {
	if len(est) != len(truth) {
		return 0, fmt.Errorf("estimate and truth lengths differ: %d != %d", len(est), len(truth))
	}
	a := make([]float64, 0, len(est))
	b := make([]float64, 0, len(truth))
	for i := range est {
		if math.IsNaN(est[i]) || math.IsNaN(truth[i]) {
			continue
		}
		a = append(a, est[i])
		b = append(b, truth[i])
	}
	if len(a) == 0 {
		return 0, ErrNoSamples
	}
	return floats.Distance(a, b, 2) / math.Sqrt(float64(len(a))), nil
}
