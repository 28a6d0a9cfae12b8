// internal/transport/sim/sim.go
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tamzrod/ble-fixture/internal/protocol"
	"github.com/tamzrod/ble-fixture/internal/transport"
)

// Transport is an in-memory radio populated with simulated units.
type Transport struct {
	mu    sync.Mutex
	units []*Unit

	// DiscoverErr fails every Discover call.
	DiscoverErr error
}

func New(units ...*Unit) *Transport {
	return &Transport{units: units}
}

// Add places another unit in range.
func (t *Transport) Add(u *Unit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.units = append(t.units, u)
}

// Discover returns every unit in range. The filter is not applied.
func (t *Transport) Discover(ctx context.Context, timeout time.Duration, f transport.Filter) ([]transport.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.DiscoverErr != nil {
		return nil, t.DiscoverErr
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]transport.Candidate, 0, len(t.units))
	for _, u := range t.units {
		out = append(out, transport.Candidate{Address: u.Address, Name: u.Name, RSSI: u.RSSI})
	}
	return out, nil
}

func (t *Transport) Connect(ctx context.Context, address string, timeout time.Duration) (transport.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	var unit *Unit
	for _, u := range t.units {
		if u.Address == address {
			unit = u
			break
		}
	}
	t.mu.Unlock()

	if unit == nil {
		return nil, fmt.Errorf("%w: %s", transport.ErrUnknownAddress, address)
	}
	if unit.ConnectErr != nil {
		return nil, unit.ConnectErr
	}

	return &conn{
		unit:      unit,
		connected: !unit.DropAfterConnect,
		subs:      map[string]chan struct{}{},
	}, nil
}

// ------------------------------------------------------------
// Connection
// ------------------------------------------------------------

type conn struct {
	unit *Unit

	mu        sync.Mutex
	connected bool
	subs      map[string]chan struct{}
	notify    map[string]transport.NotifyFunc
	wg        sync.WaitGroup
}

func (c *conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *conn) Read(ctx context.Context, char string) ([]byte, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	if err := c.unit.ReadErr[char]; err != nil {
		return nil, err
	}

	switch char {
	case protocol.CharEEPROMRead:
		return c.unit.response(), nil
	case protocol.CharSoftwareRevision:
		return []byte(c.unit.Firmware), nil
	case protocol.CharSerialNumber:
		return []byte(c.unit.Address), nil
	default:
		return nil, fmt.Errorf("%w: %s", transport.ErrUnknownCharacteristic, char)
	}
}

func (c *conn) Write(ctx context.Context, char string, data []byte, requireAck bool) error {
	if err := c.ready(ctx); err != nil {
		return err
	}

	switch char {
	case protocol.CharEEPROMWrite:
		status := c.unit.handleRequest(data)
		c.emit(protocol.CharEEPROMResult, status)
		return nil
	case protocol.CharControlPoint:
		return c.unit.powerDown()
	default:
		return fmt.Errorf("%w: %s", transport.ErrUnknownCharacteristic, char)
	}
}

func (c *conn) Subscribe(char string, fn transport.NotifyFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return transport.ErrNotConnected
	}
	if _, ok := c.subs[char]; ok {
		return fmt.Errorf("%w: %s", transport.ErrAlreadySubscribed, char)
	}

	c.unit.count(&c.unit.subscribes, char)

	stop := make(chan struct{})
	c.subs[char] = stop
	if c.notify == nil {
		c.notify = map[string]transport.NotifyFunc{}
	}
	c.notify[char] = fn

	if char == protocol.CharButtons {
		c.wg.Add(1)
		go c.play(stop, fn)
	}
	return nil
}

func (c *conn) Unsubscribe(char string) error {
	c.mu.Lock()
	stop, ok := c.subs[char]
	if ok {
		delete(c.subs, char)
		delete(c.notify, char)
		close(stop)
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", transport.ErrNotSubscribed, char)
	}
	c.unit.count(&c.unit.unsubs, char)

	// no callback may run after Unsubscribe returns
	c.wg.Wait()
	return nil
}

func (c *conn) Disconnect() error {
	c.mu.Lock()
	c.connected = false
	for char, stop := range c.subs {
		close(stop)
		delete(c.subs, char)
	}
	c.notify = nil
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *conn) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.Connected() {
		return transport.ErrNotConnected
	}
	return nil
}

func (c *conn) emit(char string, data []byte) {
	c.mu.Lock()
	fn := c.notify[char]
	c.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

// play delivers the unit's scripted button frames until stopped.
func (c *conn) play(stop <-chan struct{}, fn transport.NotifyFunc) {
	defer c.wg.Done()

	interval := c.unit.FrameInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for _, frame := range c.unit.Frames {
		select {
		case <-stop:
			return
		case <-tick.C:
		}
		fn(append([]byte(nil), frame...))
	}
	<-stop
}
