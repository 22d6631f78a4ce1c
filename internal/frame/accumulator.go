// Package frame — скользящее окно фиксированной длины (кольцевой буфер) для спектральных оценщиков.
package frame

import (
	"fmt"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
)

// MinLen — минимальная длина окна (нужны соседи пика для интерполяции)
const MinLen = 3

// Accumulator — кольцевой буфер последних n отсчётов.
// filled становится true ровно один раз, когда курсор записи впервые возвращается к нулю.
type Accumulator struct {
	buf    []float64
	idx    int
	filled bool
}

// New создаёт окно длины n; n < MinLen — ошибка конфигурации.
func New(n int) (*Accumulator, error) {
	if n < MinLen {
		return nil, fmt.Errorf("%w: frame_len must be >= %d, got %d", pmu.ErrConfiguration, MinLen, n)
	}
	return &Accumulator{buf: make([]float64, n)}, nil
}

// Len возвращает длину окна
func (a *Accumulator) Len() int { return len(a.buf) }

// Filled — true после первого полного оборота
func (a *Accumulator) Filled() bool { return a.filled }

// Push записывает отсчёт поверх самого старого
func (a *Accumulator) Push(x float64) {
	a.buf[a.idx] = x
	a.idx++
	if a.idx >= len(a.buf) {
		a.idx = 0
		a.filled = true
	}
}

// Raw возвращает содержимое буфера в порядке хранения (без копирования).
// Это циклический сдвиг хронологического порядка; модуль ДПФ от сдвига не зависит.
// Срез нельзя изменять и нельзя хранить после следующего Push.
func (a *Accumulator) Raw() []float64 { return a.buf }

// Ordered копирует окно в хронологическом порядке (от старого к новому) в dst.
// До заполнения окно начинается с нулей.
func (a *Accumulator) Ordered(dst []float64) []float64 {
	n := len(a.buf)
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	k := copy(dst, a.buf[a.idx:])
	copy(dst[k:], a.buf[:a.idx])
	return dst
}

// Reset обнуляет окно и курсор
func (a *Accumulator) Reset() {
	clear(a.buf)
	a.idx = 0
	a.filled = false
}
