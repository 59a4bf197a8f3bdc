package device

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/touchfield/config"
)

// New creates the device selected by cfg.Kind. The device is returned
// closed.
func New(cfg config.DeviceConfig, staleAfter time.Duration, logger *slog.Logger) (Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Kind {
	case "simulated", "":
		return NewSimulated(), nil
	case "serial":
		opts := PortOptions{
			BaudRate: cfg.Serial.BaudRate,
			DataBits: cfg.Serial.DataBits,
			StopBits: cfg.Serial.StopBits,
			Parity:   cfg.Serial.Parity,
		}
		if _, err := opts.Normalize(); err != nil {
			return nil, fmt.Errorf("device.serial: %w", err)
		}
		return NewSerial(cfg.Serial.Port, opts, staleAfter, WithLogger(logger)), nil
	case "none":
		return Unavailable{}, nil
	}
	return nil, fmt.Errorf("unknown device kind %q", cfg.Kind)
}
