// internal/transport/sim/unit.go
package sim

import (
	"sync"
	"time"

	"github.com/tamzrod/ble-fixture/internal/protocol"
)

// Unit is a simulated device under test. Configure the exported fields
// before the first Connect; the rest is runtime state.
type Unit struct {
	Address  string
	Name     string
	RSSI     int
	Firmware string

	// EEPROM holds field values keyed by parameter id.
	EEPROM map[byte]int64

	// Frames are delivered in order after the buttons characteristic is
	// subscribed, FrameInterval apart.
	Frames        [][]byte
	FrameInterval time.Duration

	// ---- FAULTS ----

	// ConnectErr is returned by Connect.
	ConnectErr error
	// DropAfterConnect makes the link report disconnected right away.
	DropAfterConnect bool
	// Stuck fields ignore writes and always read back this value.
	Stuck map[byte]int64
	// PowerDownErr is returned when the power-down command is written.
	PowerDownErr error
	// ReadErr fails every read of the given characteristic.
	ReadErr map[string]error
	// TruncateResponses cuts EEPROM responses to their first 4 bytes.
	TruncateResponses bool

	mu          sync.Mutex
	pending     []byte
	poweredDown bool
	writes      [][]byte
	subscribes  map[string]int
	unsubs      map[string]int
}

// NewUnit returns a unit that advertises as name with a blank EEPROM.
func NewUnit(address, name string, rssi int) *Unit {
	return &Unit{
		Address:       address,
		Name:          name,
		RSSI:          rssi,
		Firmware:      "1.0.0",
		EEPROM:        map[byte]int64{},
		FrameInterval: time.Millisecond,
	}
}

// Value returns the stored value of p.
func (u *Unit) Value(p protocol.Param) int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.EEPROM[p.ID]
}

// PoweredDown reports whether the power-down command was received.
func (u *Unit) PoweredDown() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.poweredDown
}

// Subscribes counts Subscribe calls for char.
func (u *Unit) Subscribes(char string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.subscribes[char]
}

// Unsubscribes counts Unsubscribe calls for char.
func (u *Unit) Unsubscribes(char string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.unsubs[char]
}

// Writes returns a copy of every frame written to the EEPROM request
// characteristic.
func (u *Unit) Writes() [][]byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([][]byte, len(u.writes))
	copy(out, u.writes)
	return out
}

// handleRequest executes one EEPROM request and stages the response.
// It returns the result notification payload.
func (u *Unit) handleRequest(req []byte) []byte {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.writes = append(u.writes, append([]byte(nil), req...))

	if len(req) < protocol.PrefixLen {
		u.pending = nil
		return []byte{0xFF}
	}

	op := protocol.Opcode(req[0])
	p := protocol.Param{ID: req[1], Width: int(req[3])}

	if op == protocol.OpWrite {
		if _, stuck := u.Stuck[p.ID]; !stuck {
			u.EEPROM[p.ID] = int64(littleEndian(req[protocol.PrefixLen:]))
		}
	}

	v := u.EEPROM[p.ID]
	if s, stuck := u.Stuck[p.ID]; stuck {
		v = s
	}

	payload := make([]byte, p.Width)
	for i := range payload {
		payload[i] = byte(v >> (8 * i))
	}
	u.pending = protocol.EncodeResponse(op, p, payload)

	return []byte{req[0], req[1], 0x00}
}

func (u *Unit) response() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := append([]byte(nil), u.pending...)
	if u.TruncateResponses && len(out) > 4 {
		out = out[:4]
	}
	return out
}

func (u *Unit) count(m *map[string]int, char string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if *m == nil {
		*m = map[string]int{}
	}
	(*m)[char]++
}

func (u *Unit) powerDown() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.PowerDownErr != nil {
		return u.PowerDownErr
	}
	u.poweredDown = true
	return nil
}

// width-1 writes carry a single byte, width-2 writes are little-endian
func littleEndian(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
