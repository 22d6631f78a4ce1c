// Package zcd — детектор переходов через ноль с линейной интерполяцией и потоковое состояние
// для оценки частоты и RoCoF по интервалам между переходами.
package zcd

import "fmt"

// Mode — какие переходы считать
type Mode int

const (
	NegToPos Mode = iota // снизу вверх
	PosToNeg             // сверху вниз
	Either               // любые, но только между ненулевыми знаками
)

func (m Mode) String() string {
	switch m {
	case NegToPos:
		return "neg_to_pos"
	case PosToNeg:
		return "pos_to_neg"
	case Either:
		return "either"
	default:
		return "unknown"
	}
}

// ParseMode разбирает имя режима; пустая строка — neg_to_pos.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "neg_to_pos":
		return NegToPos, nil
	case "pos_to_neg":
		return PosToNeg, nil
	case "either":
		return Either, nil
	}
	return 0, fmt.Errorf("unknown crossing mode %q", s)
}

// sign — область с мёртвой зоной: -1, 0, +1
func sign(x, eps float64) int {
	if x > eps {
		return 1
	}
	if x < -eps {
		return -1
	}
	return 0
}

// Detect проверяет переход через ноль между двумя отсчётами и линейно интерполирует его время.
// При currVal == prevVal (нет наклона) возвращает currTs.
func Detect(prevVal, prevTs, currVal, currTs, eps float64, mode Mode) (crossed bool, tCross float64) {
	s0 := sign(prevVal, eps)
	s1 := sign(currVal, eps)

	switch mode {
	case NegToPos:
		crossed = s0 == -1 && s1 >= 0
	case PosToNeg:
		crossed = s0 == 1 && s1 <= 0
	default:
		crossed = s0 != 0 && s1 != 0 && s0 != s1
	}
	if !crossed {
		return false, 0
	}

	dx := currVal - prevVal
	if dx == 0 {
		return true, currTs
	}
	alpha := -prevVal / dx
	return true, prevTs + (currTs-prevTs)*alpha
}
