// internal/session/errors.go
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/ble-fixture/internal/protocol"
)

var (
	ErrSessionActive  = errors.New("session: another session is running")
	ErrNoSerial       = errors.New("session: identity programming needs a validated serial")
	ErrNoDevice       = errors.New("session: no matching device")
	ErrLinkDropped    = errors.New("session: link dropped right after connect")
	ErrPressTimeout   = errors.New("session: press window elapsed")
	ErrMissingCounter = errors.New("session: identity variant needs an identity counter")
	ErrMissingLedger  = errors.New("session: identity variant needs a ledger")
)

// Error is a failed session: where it stopped, why, and the cause.
type Error struct {
	Phase  Phase
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("session failed in %s: %s", e.Phase, e.Reason)
	}
	return fmt.Sprintf("session failed in %s: %s: %v", e.Phase, e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Mismatch is one field whose read-back differs from what was written.
type Mismatch struct {
	Param protocol.Param
	Wrote int64
	Read  int64
}

// MismatchError lists every field that failed verification.
type MismatchError struct {
	Fields []Mismatch
}

func (e *MismatchError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, m := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s wrote %d read %d", m.Param, m.Wrote, m.Read))
	}
	return "eeprom verify: " + strings.Join(parts, ", ")
}
