// internal/config/normalize.go
package config

import (
	"strings"

	"github.com/tamzrod/ble-fixture/internal/catalog"
	"github.com/tamzrod/ble-fixture/internal/status"
)

// Defaults applied by Normalize.
const (
	DefaultLedgerPath    = "sap_log.txt"
	DefaultCounterPath   = "fixture_state.toml"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogOutput     = "stderr"
	DefaultDriver        = "ble"
	DefaultStatusTimeout = 1000
	DefaultBreakerFails  = 3
	DefaultBreakerCoolMs = 30000
	DefaultScannerBaud   = 9600
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ------------------------------------------------------------
	// CATALOG RESOLUTION
	// ------------------------------------------------------------

	// lookups cannot fail here: Validate already resolved them
	cfg.Resolved.Device, _ = catalog.Lookup(cfg.Device.Type)
	cfg.Resolved.Producer, _ = catalog.LookupProducer(cfg.Board.Producer)
	cfg.Resolved.Manufacturer, _ = catalog.LookupManufacturer(cfg.Device.Manufacturer)

	// Device type is matched against advertised names upper-case.
	cfg.Device.Type = cfg.Resolved.Device.Name
	cfg.Board.Producer = cfg.Resolved.Producer.Name
	cfg.Device.Manufacturer = cfg.Resolved.Manufacturer.Name

	// ------------------------------------------------------------
	// DEFAULTS
	// ------------------------------------------------------------

	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = DefaultLedgerPath
	}
	if cfg.Counter.Path == "" {
		cfg.Counter.Path = DefaultCounterPath
	}

	cfg.Logger.Level = orDefault(strings.ToLower(cfg.Logger.Level), DefaultLogLevel)
	cfg.Logger.Format = orDefault(strings.ToLower(cfg.Logger.Format), DefaultLogFormat)
	cfg.Logger.Output = orDefault(cfg.Logger.Output, DefaultLogOutput)
	cfg.Transport.Driver = orDefault(strings.ToLower(cfg.Transport.Driver), DefaultDriver)

	// ------------------------------------------------------------
	// STATION STATUS BLOCK (OPT-IN)
	// ------------------------------------------------------------

	if s := cfg.Status; s != nil {
		if s.TimeoutMs == 0 {
			s.TimeoutMs = DefaultStatusTimeout
		}
		if s.BreakerFailures == 0 {
			s.BreakerFailures = DefaultBreakerFails
		}
		if s.BreakerCooldownMs == 0 {
			s.BreakerCooldownMs = DefaultBreakerCoolMs
		}
		if s.Name == "" {
			s.Name = cfg.Device.Type
		}
		// ASCII already validated; truncate to the name slots
		if len(s.Name) > status.StationNameMaxChars {
			s.Name = s.Name[:status.StationNameMaxChars]
		}
	}

	if s := cfg.Scanner; s != nil && s.Baud == 0 {
		s.Baud = DefaultScannerBaud
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
