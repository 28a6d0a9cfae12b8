// internal/session/phase.go
package session

import "fmt"

// Phase is a state of the session machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDiscovering
	PhaseConnecting
	PhaseButtonTest
	PhaseProgramming
	PhaseVerifying
	PhaseReporting
	PhasePoweringDown
	PhaseDone
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseIdle:         "idle",
	PhaseDiscovering:  "discovering",
	PhaseConnecting:   "connecting",
	PhaseButtonTest:   "button_test",
	PhaseProgramming:  "programming",
	PhaseVerifying:    "verifying",
	PhaseReporting:    "reporting",
	PhasePoweringDown: "powering_down",
	PhaseDone:         "done",
	PhaseFailed:       "failed",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether p is Done or Failed.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Reason classifies a failed session.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonValidationFailed
	ReasonNoDeviceFound
	ReasonConnectionLost
	ReasonButtonsIncomplete
	ReasonEepromVerifyMismatch
	ReasonTransportFailure
	ReasonProtocolFailure
	ReasonAborted
)

var reasonNames = [...]string{
	ReasonNone:                 "none",
	ReasonValidationFailed:     "validation_failed",
	ReasonNoDeviceFound:        "no_device_found",
	ReasonConnectionLost:       "connection_lost",
	ReasonButtonsIncomplete:    "buttons_incomplete",
	ReasonEepromVerifyMismatch: "eeprom_verify_mismatch",
	ReasonTransportFailure:     "transport_failure",
	ReasonProtocolFailure:      "protocol_failure",
	ReasonAborted:              "aborted",
}

func (r Reason) String() string {
	if r >= 0 && int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Variant selects which EEPROM fields a station programs.
type Variant int

const (
	// VariantIdentity writes hardware version and identity counter.
	VariantIdentity Variant = iota
	// VariantProducer writes batch and producer.
	VariantProducer
)

func (v Variant) String() string {
	if v == VariantProducer {
		return "producer"
	}
	return "identity"
}
