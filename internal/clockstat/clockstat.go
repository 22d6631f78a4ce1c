// Package clockstat — состояние синхронизации системных часов (только чтение) для флага CLOCK_NOT_SYNCED.
package clockstat

// Status — снимок состояния дисциплины часов ядра
type Status struct {
	Synced     bool
	FreqPPM    float64
	MaxErrorUs int64
	EstErrorUs int64
}

// Synced — true, если ядро считает часы синхронизированными
func Synced() (bool, error) {
	st, err := Read()
	if err != nil {
		return false, err
	}
	return st.Synced, nil
}
