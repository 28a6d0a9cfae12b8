// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/tamzrod/ble-fixture/internal/catalog"
	"github.com/tamzrod/ble-fixture/internal/status"
)

// Range limits shared with the EEPROM field widths.
const (
	MaxByteField = 254
	MinAntID     = 1
	MaxAntID     = 65534
	MinRSSI      = -127
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	if cfg == nil {
		ve.Add("config is empty")
		return ve
	}

	validateBoard(cfg, ve)
	validateDevice(cfg, ve)
	validateVariables(cfg, ve)
	validateLogger(cfg, ve)
	validateTransport(cfg, ve)
	validateStatus(cfg, ve)
	validateScanner(cfg, ve)

	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateBoard(cfg *Config, ve *ValidationError) {
	if _, err := catalog.LookupProducer(cfg.Board.Producer); err != nil {
		ve.Add("board.producer %q is not a known producer", cfg.Board.Producer)
	}
	if !inRange(cfg.Board.Batch, 0, MaxByteField) {
		ve.Add("board.batch %d must be 0-%d", cfg.Board.Batch, MaxByteField)
	}
}

func validateDevice(cfg *Config, ve *ValidationError) {
	if _, err := catalog.Lookup(cfg.Device.Type); err != nil {
		ve.Add("device.type %q is not in the device catalog", cfg.Device.Type)
	}
	if !inRange(cfg.Device.HWVersion, 0, MaxByteField) {
		ve.Add("device.hw_version %d must be 0-%d", cfg.Device.HWVersion, MaxByteField)
	}
	if _, err := catalog.LookupManufacturer(cfg.Device.Manufacturer); err != nil {
		ve.Add("device.manufacturer %q is not a known manufacturer", cfg.Device.Manufacturer)
	}
}

func validateVariables(cfg *Config, ve *ValidationError) {
	v := cfg.Variables

	// the counter only matters where identity is programmed
	if v.FinalTest && !inRange(v.AntIDCnt, MinAntID, MaxAntID) {
		ve.Add("variables.ant_id_cnt %d must be %d-%d", v.AntIDCnt, MinAntID, MaxAntID)
	}
	if !inRange(v.RSSIThs, MinRSSI, 0) {
		ve.Add("variables.rssi_ths %d must be %d-0 dBm", v.RSSIThs, MinRSSI)
	}
	if v.ScanTime <= 0 {
		ve.Add("variables.scan_time must be > 0")
	}
	if v.BLETime <= 0 {
		ve.Add("variables.ble_time must be > 0")
	}
	if v.TimeToPressButtons <= 0 {
		ve.Add("variables.time_to_press_buttons must be > 0")
	}
	if v.SettleMs < 0 {
		ve.Add("variables.settle_ms must be >= 0")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q must be debug, info, warn or error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "console", "json":
	default:
		ve.Add("logger.format %q must be console or json", cfg.Logger.Format)
	}
}

func validateTransport(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Transport.Driver) {
	case "", "ble", "sim":
	default:
		ve.Add("transport.driver %q must be ble or sim", cfg.Transport.Driver)
	}
}

func validateStatus(cfg *Config, ve *ValidationError) {
	s := cfg.Status
	if s == nil {
		return
	}

	if s.Endpoint == "" {
		ve.Add("status.endpoint is required when status is set")
	}
	if s.TimeoutMs < 0 {
		ve.Add("status.timeout_ms must be >= 0")
	}
	if s.BreakerCooldownMs < 0 {
		ve.Add("status.breaker_cooldown_ms must be >= 0")
	}

	// the block must fit the 16-bit register space
	if end := (int(s.BaseSlot) + 1) * status.SlotsPerStation; end > 1<<16 {
		ve.Add("status.base_slot %d places the block past register 65535", s.BaseSlot)
	}

	// name sanity (ASCII only)
	for i := 0; i < len(s.Name); i++ {
		if s.Name[i] > 0x7F {
			ve.Add("status.name must contain ASCII characters only")
			break
		}
	}
}

func validateScanner(cfg *Config, ve *ValidationError) {
	s := cfg.Scanner
	if s == nil {
		return
	}
	if s.Port == "" {
		ve.Add("scanner.port is required when scanner is set")
	}
	if s.Baud < 0 {
		ve.Add("scanner.baud must be >= 0")
	}
}

func inRange(v, lo, hi int) bool {
	return v >= lo && v <= hi
}
