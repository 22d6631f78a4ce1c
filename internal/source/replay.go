package source

import (
	"context"
	"fmt"
	"io"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
)

// Replay воспроизводит заранее подготовленные отсчёты (например, синтетический сценарий)
type Replay struct {
	name   string
	inputs []pmu.Input
	pos    int
}

// NewReplay создаёт источник по срезу отсчётов; срез не копируется.
func NewReplay(name string, inputs []pmu.Input) *Replay {
	return &Replay{name: name, inputs: inputs}
}

func (r *Replay) Name() string { return fmt.Sprintf("replay:%s", r.name) }

// Next возвращает следующий отсчёт или io.EOF
func (r *Replay) Next(ctx context.Context) (pmu.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.pos >= len(r.inputs) {
		return nil, io.EOF
	}
	in := r.inputs[r.pos]
	r.pos++
	return in, nil
}

func (r *Replay) Close() error { return nil }
