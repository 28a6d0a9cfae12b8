// internal/status/constants.go
package status

// Station Status Block layout constants.
// These values define the protocol shared with the line PLC and MUST NOT
// be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerStation is the fixed number of holding registers per station.
const SlotsPerStation = 20

// ---- SLOT INDICES ----

// SlotHealth holds the station state.
const SlotHealth = 0

// SlotLastFailure holds the reason code of the last failed session.
const SlotLastFailure = 1

// SlotPhase holds the phase of the running session.
const SlotPhase = 2

// SlotPassed counts passed units since start (wraps at 65535).
const SlotPassed = 3

// SlotFailed counts failed units since start (wraps at 65535).
const SlotFailed = 4

// ---- RESERVED RANGE ----

// Slots 5–11 are reserved for future use.
const SlotReservedStart = 5
const SlotReservedEnd = 11

// ---- STATION NAME ----

// SlotStationNameStart is the first slot used for the station name.
// The name is always placed at the END of the status block.
const SlotStationNameStart = 12

// SlotStationNameSlots is the number of slots reserved for the name.
const SlotStationNameSlots = 8

// SlotStationNameEnd is the last slot used for the name (inclusive).
const SlotStationNameEnd = SlotStationNameStart + SlotStationNameSlots - 1

// ---- LIMITS ----

// StationNameMaxChars is the maximum number of ASCII characters stored.
const StationNameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown represents boot state, before the first session.
const HealthUnknown uint16 = 0

// HealthIdle represents a station waiting for the next unit.
const HealthIdle uint16 = 1

// HealthTesting represents a session in progress.
const HealthTesting uint16 = 2

// HealthPass represents a station whose last unit passed.
const HealthPass uint16 = 3

// HealthFail represents a station whose last unit failed.
const HealthFail uint16 = 4
