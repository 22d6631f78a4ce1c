package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tarm/serial"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/logger"
	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
)

// ErrMalformed — строка не разбирается как отсчёт
var ErrMalformed = errors.New("malformed sample line")

// Порядок полей строки АЦП после метки времени
var lineChannels = []pmu.Channel{pmu.V1, pmu.V2, pmu.V3, pmu.I1, pmu.I2, pmu.I3}

// Serial — АЦП на последовательном порту, строки CSV: ts,V1,V2,V3,I1,I2,I3.
// Пустое поле — канала нет в кадре; пустая метка — время хоста.
type Serial struct {
	name string
	rc   io.ReadCloser
	rd   *csv.Reader
	now  func() time.Time
}

// OpenSerial открывает порт (чтение блокирующее; Close прерывает Next).
func OpenSerial(device string, baud int) (*Serial, error) {
	if baud == 0 {
		baud = 115200
	}
	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", device, err)
	}
	return NewSerialReader("serial:"+device, port), nil
}

// NewSerialReader читает тот же формат из произвольного потока
func NewSerialReader(name string, rc io.ReadCloser) *Serial {
	rd := csv.NewReader(rc)
	rd.FieldsPerRecord = -1
	rd.TrimLeadingSpace = true
	rd.Comment = '#'
	rd.ReuseRecord = true
	return &Serial{name: name, rc: rc, rd: rd, now: time.Now}
}

func (s *Serial) Name() string { return s.name }

// Next возвращает следующий разобранный кадр; битые строки пропускаются с записью в лог.
func (s *Serial) Next(ctx context.Context) (pmu.Snapshot, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.rd.Read()
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				logger.Debug("%s: skip line %d: %v", s.name, perr.Line, err)
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%s read: %w", s.name, err)
		}
		f, err := ParseRecord(rec, s.now)
		if err != nil {
			if errors.Is(err, errHeader) {
				continue
			}
			logger.Debug("%s: %v", s.name, err)
			continue
		}
		return f, nil
	}
}

func (s *Serial) Close() error { return s.rc.Close() }

var errHeader = errors.New("header line")

// ParseRecord разбирает поля одной строки: метка времени и до шести каналов.
func ParseRecord(rec []string, now func() time.Time) (pmu.Frame, error) {
	if len(rec) == 0 || len(rec) > 1+len(lineChannels) {
		return pmu.Frame{}, fmt.Errorf("%w: %d fields", ErrMalformed, len(rec))
	}
	if strings.EqualFold(strings.TrimSpace(rec[0]), "ts") {
		return pmu.Frame{}, errHeader
	}
	f := pmu.Frame{Values: make(map[pmu.Channel]float64, len(rec)-1)}
	if ts := strings.TrimSpace(rec[0]); ts != "" {
		v, err := strconv.ParseFloat(ts, 64)
		if err != nil {
			return pmu.Frame{}, fmt.Errorf("%w: timestamp %q", ErrMalformed, ts)
		}
		f.Timestamp = v
	} else {
		f.Timestamp = float64(now().UnixNano()) / 1e9
	}
	for i, field := range rec[1:] {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return pmu.Frame{}, fmt.Errorf("%w: %s=%q", ErrMalformed, lineChannels[i], field)
		}
		f.Values[lineChannels[i]] = v
	}
	return f, nil
}
