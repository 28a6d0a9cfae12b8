// internal/transport/transport.go
package transport

import (
	"context"
	"errors"
	"sort"
	"time"
)

// Capability surface of the wireless link. Characteristics are
// identified by their 128-bit UUID in canonical string form.

var (
	ErrNotConnected          = errors.New("transport: not connected")
	ErrUnknownAddress        = errors.New("transport: unknown address")
	ErrUnknownCharacteristic = errors.New("transport: unknown characteristic")
	ErrAlreadySubscribed     = errors.New("transport: already subscribed")
	ErrNotSubscribed         = errors.New("transport: not subscribed")
)

// Candidate is one advertising unit seen during discovery.
type Candidate struct {
	Address string
	Name    string
	RSSI    int
}

// Filter selects candidates by exact name and minimum signal strength.
type Filter struct {
	Name    string
	MinRSSI int
}

func (f Filter) Match(c Candidate) bool {
	return c.Name == f.Name && c.RSSI >= f.MinRSSI
}

// Select applies f and returns the strongest match.
// Ties keep discovery order.
func Select(cands []Candidate, f Filter) (Candidate, bool) {
	var matched []Candidate
	for _, c := range cands {
		if f.Match(c) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return Candidate{}, false
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].RSSI > matched[j].RSSI })
	return matched[0], true
}

// Transport discovers and connects to units.
type Transport interface {
	// Discover scans for timeout and returns what was seen. The filter is
	// a hint; implementations may return non-matching candidates.
	Discover(ctx context.Context, timeout time.Duration, f Filter) ([]Candidate, error)
	Connect(ctx context.Context, address string, timeout time.Duration) (Connection, error)
}

// NotifyFunc receives one notification payload. It runs on a transport
// goroutine and must not retain data.
type NotifyFunc func(data []byte)

// Connection is an open link to one unit.
type Connection interface {
	Read(ctx context.Context, char string) ([]byte, error)
	Write(ctx context.Context, char string, data []byte, requireAck bool) error
	Subscribe(char string, fn NotifyFunc) error
	Unsubscribe(char string) error
	Connected() bool
	Disconnect() error
}
