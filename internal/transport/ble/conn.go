// internal/transport/ble/conn.go
package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"

	"github.com/tamzrod/ble-fixture/internal/transport"
)

// readBufSize covers the largest attribute value (ATT max 512).
const readBufSize = 512

// peripheral is the part of a connected bluetooth device we use.
type peripheral interface {
	DiscoverServices(uuids []bluetooth.UUID) ([]bluetooth.DeviceService, error)
	Disconnect() error
}

// characteristic is the subset of bluetooth.DeviceCharacteristic every
// host backend provides.
type characteristic interface {
	UUID() bluetooth.UUID
	Read(data []byte) (int, error)
	WriteWithoutResponse(p []byte) (int, error)
	EnableNotifications(callback func(buf []byte)) error
}

// ackWriter is a backend with an explicit GATT Write Request (darwin, windows).
type ackWriter interface {
	Write(p []byte) (int, error)
}

// writeAcked issues a write that completes only after the peripheral
// responds. BlueZ has no separate call: WriteValue without a "type" option
// goes out as a Write Request when the characteristic supports it, and the
// D-Bus call returns after the response.
func writeAcked(ch characteristic, data []byte) (int, error) {
	if w, ok := ch.(ackWriter); ok {
		return w.Write(data)
	}
	return ch.WriteWithoutResponse(data)
}

// conn serializes GATT operations; the host stack does not queue them.
type conn struct {
	address string
	dev     peripheral
	log     zerolog.Logger

	mu        sync.Mutex
	connected bool
	chars     map[string]characteristic
	subs      map[string]bool
}

func newConn(address string, dev peripheral, log zerolog.Logger) *conn {
	return &conn{
		address:   address,
		dev:       dev,
		log:       log.With().Str("address", address).Logger(),
		connected: true,
		subs:      map[string]bool{},
	}
}

func (c *conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *conn) Read(ctx context.Context, char string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.characteristicLocked(ctx, char)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, readBufSize)
	n, err := ch.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("ble: read %s: %w", char, err)
	}
	return buf[:n], nil
}

func (c *conn) Write(ctx context.Context, char string, data []byte, requireAck bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.characteristicLocked(ctx, char)
	if err != nil {
		return err
	}

	if requireAck {
		_, err = writeAcked(ch, data)
	} else {
		_, err = ch.WriteWithoutResponse(data)
	}
	if err != nil {
		return fmt.Errorf("ble: write %s: %w", char, err)
	}
	return nil
}

func (c *conn) Subscribe(char string, fn transport.NotifyFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subs[char] {
		return fmt.Errorf("%w: %s", transport.ErrAlreadySubscribed, char)
	}
	ch, err := c.characteristicLocked(context.Background(), char)
	if err != nil {
		return err
	}

	if err := ch.EnableNotifications(func(buf []byte) { fn(buf) }); err != nil {
		return fmt.Errorf("ble: subscribe %s: %w", char, err)
	}
	c.subs[char] = true
	return nil
}

func (c *conn) Unsubscribe(char string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.subs[char] {
		return fmt.Errorf("%w: %s", transport.ErrNotSubscribed, char)
	}
	delete(c.subs, char)

	ch, err := c.characteristicLocked(context.Background(), char)
	if err != nil {
		return err
	}
	// nil callback stops notifications
	if err := ch.EnableNotifications(nil); err != nil {
		return fmt.Errorf("ble: unsubscribe %s: %w", char, err)
	}
	return nil
}

func (c *conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	c.subs = map[string]bool{}

	if err := c.dev.Disconnect(); err != nil {
		return fmt.Errorf("ble: disconnect %s: %w", c.address, err)
	}
	c.log.Info().Msg("disconnected")
	return nil
}

// characteristicLocked resolves char, discovering the GATT table on
// first use.
func (c *conn) characteristicLocked(ctx context.Context, char string) (characteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.connected {
		return nil, transport.ErrNotConnected
	}

	if c.chars == nil {
		if err := c.discoverLocked(); err != nil {
			return nil, err
		}
	}

	ch, ok := c.chars[strings.ToLower(char)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrUnknownCharacteristic, char)
	}
	return ch, nil
}

func (c *conn) discoverLocked() error {
	svcs, err := c.dev.DiscoverServices(nil)
	if err != nil {
		// a failed discovery right after connect means the link is gone
		c.connected = false
		return fmt.Errorf("ble: discover services: %w", err)
	}

	chars := map[string]characteristic{}
	for _, svc := range svcs {
		list, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return fmt.Errorf("ble: discover characteristics of %s: %w", svc.UUID().String(), err)
		}
		for _, ch := range list {
			chars[strings.ToLower(ch.UUID().String())] = ch
		}
	}

	c.chars = chars
	c.log.Debug().Int("characteristics", len(chars)).Msg("gatt table cached")
	return nil
}
