package pmu

import (
	"fmt"
	"math"
)

// Snapshot — один срез измерений: метка времени (секунды) и значения каналов.
// Value возвращает false, если канала в снимке нет.
type Snapshot interface {
	Time() float64
	Value(ch Channel) (float64, bool)
}

// Input — фиксированная запись из шести каналов (аналог PMU_Input).
type Input struct {
	V1, V2, V3 float64
	I1, I2, I3 float64
	Timestamp  float64 // UNIX UTC, секунды
}

// Time возвращает метку времени
func (in Input) Time() float64 { return in.Timestamp }

// Value возвращает значение канала; все шесть каналов присутствуют всегда.
func (in Input) Value(ch Channel) (float64, bool) {
	switch ch {
	case V1:
		return in.V1, true
	case V2:
		return in.V2, true
	case V3:
		return in.V3, true
	case I1:
		return in.I1, true
	case I2:
		return in.I2, true
	case I3:
		return in.I3, true
	}
	return 0, false
}

// Validate проверяет, что все значения и метка времени конечны.
func (in Input) Validate() error {
	for _, v := range [...]float64{in.V1, in.V2, in.V3, in.I1, in.I2, in.I3, in.Timestamp} {
		if !Finite(v) {
			return fmt.Errorf("non-finite value in input sample at t=%v", in.Timestamp)
		}
	}
	return nil
}

// Frame — разреженный снимок: присутствуют только реально полученные каналы
// (например, строка с последовательного АЦП с пустыми полями).
type Frame struct {
	Timestamp float64
	Values    map[Channel]float64
}

// Time возвращает метку времени
func (f Frame) Time() float64 { return f.Timestamp }

// Value возвращает значение канала, если оно есть в кадре
func (f Frame) Value(ch Channel) (float64, bool) {
	v, ok := f.Values[ch]
	return v, ok
}

// Require возвращает значение канала или ErrInputContract.
func Require(s Snapshot, ch Channel) (float64, error) {
	v, ok := s.Value(ch)
	if !ok {
		return 0, fmt.Errorf("%w: snapshot has no channel %s", ErrInputContract, ch)
	}
	return v, nil
}

// Finite — true для конечного значения
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// InstantPhasors — заглушки фазоров: мгновенное значение каждого присутствующего канала
// как вещественная часть; нечисловые значения пропускаются. Оценщики частоты не считают настоящие фазоры.
func InstantPhasors(s Snapshot, channels []Channel) map[Channel]complex128 {
	out := make(map[Channel]complex128, len(channels))
	for _, ch := range channels {
		if v, ok := s.Value(ch); ok && Finite(v) {
			out[ch] = complex(v, 0)
		}
	}
	return out
}
