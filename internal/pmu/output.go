package pmu

import (
	"encoding/json"
	"math/cmplx"
	"strings"
)

// Status — статус-слово записи (битовая маска, как в PMU: флаги комбинируются, OK = 0)
type Status uint16

const (
	StatusOK             Status = 0x0000
	StatusDataError      Status = 0x0001
	StatusClockNotSynced Status = 0x0002
	StatusPLLUnlocked    Status = 0x0004
	StatusOverRange      Status = 0x0008
)

var statusNames = []struct {
	flag Status
	name string
}{
	{StatusDataError, "DATA_ERROR"},
	{StatusClockNotSynced, "CLOCK_NOT_SYNCED"},
	{StatusPLLUnlocked, "PLL_UNLOCKED"},
	{StatusOverRange, "OVER_RANGE"},
}

// Has — true, если установлены все биты f
func (s Status) Has(f Status) bool {
	return s&f == f
}

// IsOK — true, если ни один флаг не установлен
func (s Status) IsOK() bool {
	return s == StatusOK
}

func (s Status) String() string {
	if s == StatusOK {
		return "OK"
	}
	var parts []string
	rest := s
	for _, n := range statusNames {
		if s&n.flag != 0 {
			parts = append(parts, n.name)
			rest &^= n.flag
		}
	}
	if rest != 0 {
		parts = append(parts, "unknown")
	}
	return strings.Join(parts, "|")
}

// Output — результат одного обновления оценщика (аналог PMU_Output).
// Создаётся заново на каждый вызов и после возврата не изменяется.
type Output struct {
	Phasors      map[Channel]complex128
	FrequencyHz  float64
	RocofHzS     float64
	TimestampUTC float64
	Status       Status
}

// Ключи стандартного плоского представления
const (
	KeyTimestamp = "TIMESTAMP_UTC"
	KeyFrequency = "FREQUENCY_HZ"
	KeyRocof     = "ROCOF_HZ_S"
	KeyStatus    = "STATUS_WORD"
)

// StandardMap возвращает запись в виде плоской карты:
// TIMESTAMP_UTC, FREQUENCY_HZ, ROCOF_HZ_S, STATUS_WORD и <NAME>_MAG / <NAME>_ANGLE_RAD на каждый фазор.
func (o Output) StandardMap() map[string]any {
	out := make(map[string]any, 4+2*len(o.Phasors))
	out[KeyTimestamp] = o.TimestampUTC
	out[KeyFrequency] = o.FrequencyHz
	out[KeyRocof] = o.RocofHzS
	out[KeyStatus] = int(o.Status)
	for name, p := range o.Phasors {
		out[string(name)+"_MAG"] = cmplx.Abs(p)
		out[string(name)+"_ANGLE_RAD"] = cmplx.Phase(p)
	}
	return out
}

// MarshalJSON сериализует запись в стандартном плоском виде
func (o Output) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.StandardMap())
}
