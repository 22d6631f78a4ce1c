package source

import (
	"fmt"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/config"
)

// NewFromConfig создаёт источник по секции source
func NewFromConfig(c *config.Source) (SampleSource, error) {
	if c == nil {
		return nil, fmt.Errorf("source not configured")
	}
	switch c.Protocol {
	case "serial", "":
		if c.Device == "" {
			return nil, fmt.Errorf("serial: device required")
		}
		return OpenSerial(c.Device, c.Baud)
	default:
		return nil, fmt.Errorf("unknown protocol: %s", c.Protocol)
	}
}
