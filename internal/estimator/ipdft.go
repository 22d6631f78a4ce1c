package estimator

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/frame"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/zcd"
)

// IpDFTConfig — интерполированное ДПФ по скользящему окну одного канала
type IpDFTConfig struct {
	Fs        float64
	FrameLen  int
	Channel   pmu.Channel
	NominalHz float64 // выдаётся, пока окно не заполнено; 0 — 60 Гц
}

// IpDFT — частота по пику спектра окна с параболической интерполяцией между бинами.
type IpDFT struct {
	cfg   IpDFTConfig
	win   *frame.Accumulator
	fft   *fourier.FFT
	coeff []complex128
	mag   []float64

	prevFreq float64
	prevTs   float64
	hasPrev  bool
}

// NewIpDFT проверяет конфиг и создаёт оценщик
func NewIpDFT(cfg IpDFTConfig) (*IpDFT, error) {
	if err := validateFs(cfg.Fs); err != nil {
		return nil, err
	}
	if _, err := pmu.ParseChannel(string(cfg.Channel)); err != nil {
		return nil, err
	}
	if cfg.NominalHz == 0 {
		cfg.NominalHz = zcd.DefaultNominalHz
	}
	win, err := frame.New(cfg.FrameLen)
	if err != nil {
		return nil, err
	}
	return &IpDFT{
		cfg:   cfg,
		win:   win,
		fft:   fourier.NewFFT(cfg.FrameLen),
		coeff: make([]complex128, cfg.FrameLen/2+1),
		mag:   make([]float64, cfg.FrameLen/2),
	}, nil
}

func (e *IpDFT) Name() string {
	return fmt.Sprintf("ipdft(%s,N=%d)", e.cfg.Channel, e.cfg.FrameLen)
}

func (e *IpDFT) Reset() {
	e.win.Reset()
	e.prevFreq, e.prevTs, e.hasPrev = 0, 0, false
}

// PeakInterpolate ищет пик модуля спектра (первый максимум) и поправку delta в долях бина.
// Поправка считается только для внутреннего пика (есть оба соседа), иначе 0; нулевой знаменатель — тоже 0.
func PeakInterpolate(mag []float64) (k int, delta float64) {
	if len(mag) == 0 {
		return 0, 0
	}
	k = floats.MaxIdx(mag)
	if k <= 0 || k >= len(mag)-1 {
		return k, 0
	}
	a, b, c := mag[k-1], mag[k], mag[k+1]
	den := a - 2*b + c
	if den == 0 {
		return k, 0
	}
	return k, 0.5 * (a - c) / den
}

// spectrum — частота по текущему окну; interior=false, если пик на краю спектра.
// Модуль ДПФ не зависит от циклического сдвига, поэтому окно берётся в порядке хранения.
func (e *IpDFT) spectrum() (freq float64, interior bool) {
	e.coeff = e.fft.Coefficients(e.coeff, e.win.Raw())
	for i := range e.mag {
		e.mag[i] = cmplx.Abs(e.coeff[i])
	}
	k, delta := PeakInterpolate(e.mag)
	interior = k > 0 && k < len(e.mag)-1
	return (float64(k) + delta) * e.cfg.Fs / float64(e.cfg.FrameLen), interior
}

// Update подаёт снимок. До заполнения окна — номинальная частота и PLL_UNLOCKED.
// RoCoF — разность с предыдущей выданной оценкой (включая номинальную).
func (e *IpDFT) Update(s pmu.Snapshot) (pmu.Output, error) {
	v, err := pmu.Require(s, e.cfg.Channel)
	if err != nil {
		return pmu.Output{}, err
	}
	ts := s.Time()
	out := pmu.Output{Phasors: pmu.InstantPhasors(s, pmu.Channels)}

	if !pmu.Finite(v) || !pmu.Finite(ts) {
		out.Status |= pmu.StatusDataError
		out.FrequencyHz = e.cfg.NominalHz
		if e.hasPrev {
			out.FrequencyHz = e.prevFreq
		}
		out.TimestampUTC = stamp(ts, e.prevTs)
		if !e.win.Filled() {
			out.Status |= pmu.StatusPLLUnlocked
		}
		return out, nil
	}

	e.win.Push(v)
	freq := e.cfg.NominalHz
	if e.win.Filled() {
		var interior bool
		freq, interior = e.spectrum()
		if !interior {
			out.Status |= pmu.StatusOverRange
		}
	} else {
		out.Status |= pmu.StatusPLLUnlocked
	}

	if e.hasPrev {
		if dt := ts - e.prevTs; dt > 0 {
			out.RocofHzS = (freq - e.prevFreq) / dt
		}
	}
	e.prevFreq, e.prevTs, e.hasPrev = freq, ts, true

	out.FrequencyHz = freq
	out.TimestampUTC = ts
	return out, nil
}
