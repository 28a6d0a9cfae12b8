// internal/writer/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// MaxBlockRegisters is the FC16 limit on registers per request.
const MaxBlockRegisters = 123

var (
	ErrEndpointRequired = errors.New("status plc: endpoint required")
	ErrBlockTooLarge    = errors.New("status plc: block exceeds one FC16 request")
	ErrAddressOverflow  = errors.New("status plc: block runs past register 65535")
)

// registerWriter is the one goburrow call a station block needs.
type registerWriter interface {
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

type Config struct {
	Endpoint string
	// UnitID addresses the PLC behind a gateway; fixed for the station.
	UnitID  uint8
	Timeout time.Duration
}

// StationClient writes one station's status registers on a PLC.
// The handler reconnects on the next write after a broken connection.
type StationClient struct {
	endpoint string
	handler  *modbus.TCPClientHandler
	regs     registerWriter
}

// Dial connects to the PLC. The connection is opened eagerly so a wrong
// endpoint is reported at startup.
func Dial(cfg Config) (*StationClient, error) {
	if cfg.Endpoint == "" {
		return nil, ErrEndpointRequired
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("status plc: connect %s: %w", cfg.Endpoint, err)
	}

	return &StationClient{
		endpoint: cfg.Endpoint,
		handler:  h,
		regs:     modbus.NewClient(h),
	}, nil
}

func (c *StationClient) Close() error {
	if c.handler == nil {
		return nil
	}
	return c.handler.Close()
}

// WriteBlock writes regs starting at addr in a single FC16 request.
// An empty block is a no-op.
func (c *StationClient) WriteBlock(addr uint16, regs []uint16) error {
	if len(regs) == 0 {
		return nil
	}
	if len(regs) > MaxBlockRegisters {
		return fmt.Errorf("%w: %d registers", ErrBlockTooLarge, len(regs))
	}
	if int(addr)+len(regs) > 1<<16 {
		return fmt.Errorf("%w: addr %d + %d", ErrAddressOverflow, addr, len(regs))
	}

	if _, err := c.regs.WriteMultipleRegisters(addr, uint16(len(regs)), PackRegisters(regs)); err != nil {
		return fmt.Errorf("status plc %s: write %d@%d: %w", c.endpoint, len(regs), addr, err)
	}
	return nil
}

// PackRegisters encodes registers big-endian, as Modbus puts them on the wire.
func PackRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
