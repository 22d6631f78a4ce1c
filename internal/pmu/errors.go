package pmu

import "errors"

var (
	// ErrConfiguration — неверная конфигурация оценщика; возвращается только при создании.
	ErrConfiguration = errors.New("configuration error")
	// ErrInputContract — снимок не содержит требуемого канала (или узла).
	ErrInputContract = errors.New("input contract violation")
)
