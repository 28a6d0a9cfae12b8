// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	"github.com/tamzrod/ble-fixture/internal/config"
	wmodbus "github.com/tamzrod/ble-fixture/internal/writer/modbus"
)

// BuildPlan converts the status config into a writer Plan.
// Assumes config has already passed validation and normalization.
func BuildPlan(sc config.StatusConfig) (Plan, error) {
	if sc.Endpoint == "" {
		return Plan{}, errors.New("writer: status.endpoint required")
	}

	return Plan{
		Endpoint: sc.Endpoint,
		UnitID:   sc.UnitID,
		BaseSlot: sc.BaseSlot,
		Name:     sc.Name,
	}, nil
}

// Dial opens the PLC connection and returns a ready writer and its closer.
func Dial(sc config.StatusConfig) (*StationWriter, func() error, error) {
	plan, err := BuildPlan(sc)
	if err != nil {
		return nil, nil, err
	}

	c, err := wmodbus.Dial(wmodbus.Config{
		Endpoint: plan.Endpoint,
		UnitID:   plan.UnitID,
		Timeout:  time.Duration(sc.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	return NewStationWriter(plan, c), c.Close, nil
}
