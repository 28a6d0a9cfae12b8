// internal/config/config.go
package config

import (
	"time"

	"github.com/tamzrod/ble-fixture/internal/catalog"
)

// Section names follow the station's settings.toml (BOARD / DEVICE /
// VARIABLES) so existing files load unchanged.
type Config struct {
	Board     BoardConfig     `yaml:"board" toml:"BOARD"`
	Device    DeviceConfig    `yaml:"device" toml:"DEVICE"`
	Variables VariablesConfig `yaml:"variables" toml:"VARIABLES"`

	Ledger    LedgerConfig    `yaml:"ledger" toml:"LEDGER"`
	Counter   CounterConfig   `yaml:"counter" toml:"COUNTER"`
	Logger    LoggerConfig    `yaml:"logger" toml:"LOGGER"`
	Transport TransportConfig `yaml:"transport" toml:"TRANSPORT"`

	// Optional, opt-in.
	Status  *StatusConfig  `yaml:"status" toml:"STATUS"`
	Scanner *ScannerConfig `yaml:"scanner" toml:"SCANNER"`

	// Filled by Normalize.
	Resolved Resolved `yaml:"-" toml:"-"`
}

// ---- BOARD ----

type BoardConfig struct {
	Producer string `yaml:"producer" toml:"producer"`
	Batch    int    `yaml:"batch" toml:"batch"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Type         string `yaml:"type" toml:"type"`
	HWVersion    int    `yaml:"hw_version" toml:"hw_version"`
	Manufacturer string `yaml:"manufacturer" toml:"manufacturer"`
}

// ---- VARIABLES ----

type VariablesConfig struct {
	AntIDCnt int `yaml:"ant_id_cnt" toml:"ant_id_cnt"`
	RSSIThs  int `yaml:"rssi_ths" toml:"rssi_ths"`

	// seconds
	ScanTime           float64 `yaml:"scan_time" toml:"scan_time"`
	BLETime            float64 `yaml:"ble_time" toml:"ble_time"`
	TimeToPressButtons float64 `yaml:"time_to_press_buttons" toml:"time_to_press_buttons"`

	FileVer   float64 `yaml:"file_ver" toml:"file_ver"`
	FinalTest bool    `yaml:"final_test" toml:"final_test"`
	SettleMs  int     `yaml:"settle_ms" toml:"settle_ms"`
}

func (v VariablesConfig) ScanTimeout() time.Duration    { return seconds(v.ScanTime) }
func (v VariablesConfig) ConnectTimeout() time.Duration { return seconds(v.BLETime) }
func (v VariablesConfig) PressWindow() time.Duration    { return seconds(v.TimeToPressButtons) }
func (v VariablesConfig) SettleDelay() time.Duration {
	return time.Duration(v.SettleMs) * time.Millisecond
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ---- LEDGER ----

type LedgerConfig struct {
	Path        string `yaml:"path" toml:"path"`
	LogFailures bool   `yaml:"log_failures" toml:"log_failures"`
}

// ---- COUNTER ----

type CounterConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// ---- LOGGER ----

type LoggerConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	Output string `yaml:"output" toml:"output"`
}

// ---- TRANSPORT ----

type TransportConfig struct {
	// Driver is "ble" (host radio) or "sim" (dry run, no hardware).
	Driver string `yaml:"driver" toml:"driver"`
}

// ---- STATUS (PLC) ----

type StatusConfig struct {
	Endpoint  string `yaml:"endpoint" toml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id" toml:"unit_id"`
	BaseSlot  uint16 `yaml:"base_slot" toml:"base_slot"`
	TimeoutMs int    `yaml:"timeout_ms" toml:"timeout_ms"`
	Name      string `yaml:"name" toml:"name"`

	// Consecutive failed writes before publishing pauses, and for how long.
	BreakerFailures   uint32 `yaml:"breaker_failures" toml:"breaker_failures"`
	BreakerCooldownMs int    `yaml:"breaker_cooldown_ms" toml:"breaker_cooldown_ms"`
}

// ---- SCANNER ----

type ScannerConfig struct {
	Port string `yaml:"port" toml:"port"`
	Baud int    `yaml:"baud" toml:"baud"`
}

// Resolved holds catalog lookups done once at load.
type Resolved struct {
	Device       catalog.Device
	Producer     catalog.Party
	Manufacturer catalog.Party
}
