// internal/transport/ble/ble.go
package ble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"

	"github.com/tamzrod/ble-fixture/internal/transport"
)

// Adapter is the host radio. One per process.
type Adapter struct {
	radio *bluetooth.Adapter
	log   zerolog.Logger

	enableOnce sync.Once
	enableErr  error

	mu   sync.Mutex
	seen map[string]bluetooth.Address
}

// New wraps the default host adapter.
func New(log zerolog.Logger) *Adapter {
	return &Adapter{
		radio: bluetooth.DefaultAdapter,
		log:   log.With().Str("component", "ble").Logger(),
		seen:  map[string]bluetooth.Address{},
	}
}

func (a *Adapter) enable() error {
	a.enableOnce.Do(func() {
		a.enableErr = a.radio.Enable()
	})
	if a.enableErr != nil {
		return fmt.Errorf("ble: enable adapter: %w", a.enableErr)
	}
	return nil
}

// Discover scans for timeout. Every advertiser is returned with its
// strongest RSSI; the filter only gates debug logging.
func (a *Adapter) Discover(ctx context.Context, timeout time.Duration, f transport.Filter) ([]transport.Candidate, error) {
	if err := a.enable(); err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-scanCtx.Done()
		_ = a.radio.StopScan()
	}()

	var (
		mu    sync.Mutex
		order []string
		best  = map[string]transport.Candidate{}
	)

	err := a.radio.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		c := transport.Candidate{
			Address: r.Address.String(),
			Name:    r.LocalName(),
			RSSI:    int(r.RSSI),
		}

		mu.Lock()
		defer mu.Unlock()

		prev, ok := best[c.Address]
		if !ok {
			order = append(order, c.Address)
		}
		if !ok || c.RSSI > prev.RSSI || (prev.Name == "" && c.Name != "") {
			if c.Name == "" {
				c.Name = prev.Name
			}
			best[c.Address] = c
		}
		a.remember(c.Address, r.Address)

		if f.Match(c) && !ok {
			a.log.Debug().Str("address", c.Address).Int("rssi", c.RSSI).Msg("candidate")
		}
	})

	cancel()
	<-stopped

	if err != nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}
	// caller cancellation, not the scan window
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]transport.Candidate, 0, len(order))
	for _, addr := range order {
		out = append(out, best[addr])
	}
	return out, nil
}

// Connect opens a link to an address seen by a previous Discover.
func (a *Adapter) Connect(ctx context.Context, address string, timeout time.Duration) (transport.Connection, error) {
	if err := a.enable(); err != nil {
		return nil, err
	}

	addr, ok := a.lookup(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrUnknownAddress, address)
	}

	type result struct {
		dev peripheral
		err error
	}
	done := make(chan result, 1)

	go func() {
		dev, err := a.radio.Connect(addr, bluetooth.ConnectionParams{
			ConnectionTimeout: bluetooth.NewDuration(timeout),
		})
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{dev: dev}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("ble: connect %s: %w", address, r.err)
		}
		a.log.Info().Str("address", address).Msg("connected")

		// discover eagerly so a link that drops at once shows as
		// not connected
		c := newConn(address, r.dev, a.log)
		c.mu.Lock()
		if err := c.discoverLocked(); err != nil {
			a.log.Warn().Err(err).Str("address", address).Msg("gatt discovery failed")
		}
		c.mu.Unlock()
		return c, nil

	case <-ctx.Done():
		// release the link if it comes up late
		go func() {
			if r := <-done; r.err == nil {
				_ = r.dev.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

func (a *Adapter) remember(s string, addr bluetooth.Address) {
	a.mu.Lock()
	a.seen[s] = addr
	a.mu.Unlock()
}

func (a *Adapter) lookup(s string) (bluetooth.Address, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	addr, ok := a.seen[s]
	return addr, ok
}
