// Package source — источники отсчётов для живого режима и воспроизведения.
package source

import (
	"context"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
)

// SampleSource — поток снимков (аналог TimeSource, но отдаёт отсчёты, а не время)
type SampleSource interface {
	// Name возвращает имя источника для логов
	Name() string
	// Next блокируется до следующего снимка; io.EOF — поток закончился
	Next(ctx context.Context) (pmu.Snapshot, error)
	// Close освобождает ресурсы; прерывает ожидающий Next
	Close() error
}
