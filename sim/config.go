package sim

import (
	"fmt"

	"github.com/wiresim/wiresim/sim/trace"
)

// EngineConfig groups routing, movement and bend-editor parameters.
type EngineConfig struct {
	BaseSpeed       float64 // packet speed in layout units per second (must be > 0)
	TickMs          int64   // simulation step used by Simulator.Run (must be > 0)
	RetryIntervalMs int64   // period of the buffered-packet retry sweep (must be > 0)
	StorageCapacity int     // relay FIFO capacity (must be > 0)
	MaxBends        int     // confirmed bends allowed per wire
	BendCost        int     // coins charged per inserted bend
}

// DefaultEngineConfig returns the stock engine parameters.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BaseSpeed:       100,
		TickMs:          10,
		RetryIntervalMs: 100,
		StorageCapacity: 5,
		MaxBends:        3,
		BendCost:        1,
	}
}

// Validate checks that every field is usable.
func (c EngineConfig) Validate() error {
	if c.BaseSpeed <= 0 {
		return fmt.Errorf("base speed must be positive, got %f", c.BaseSpeed)
	}
	if c.TickMs <= 0 {
		return fmt.Errorf("tick must be positive, got %d", c.TickMs)
	}
	if c.RetryIntervalMs <= 0 {
		return fmt.Errorf("retry interval must be positive, got %d", c.RetryIntervalMs)
	}
	if c.StorageCapacity <= 0 {
		return fmt.Errorf("storage capacity must be positive, got %d", c.StorageCapacity)
	}
	if c.MaxBends < 0 {
		return fmt.Errorf("max bends must be non-negative, got %d", c.MaxBends)
	}
	if c.BendCost < 0 {
		return fmt.Errorf("bend cost must be non-negative, got %d", c.BendCost)
	}
	return nil
}

// SimConfig groups everything needed to build a Simulator.
type SimConfig struct {
	Engine        EngineConfig
	Seed          int64
	WireBudget    float64 // total wire length for the level
	StartingCoins int
	Trace         trace.TraceConfig
	Notifier      Notifier // nil means NopNotifier
}
