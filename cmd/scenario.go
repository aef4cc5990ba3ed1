package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wiresim/wiresim/sim"
	"github.com/wiresim/wiresim/sim/geom"
	"github.com/wiresim/wiresim/sim/level"
	"github.com/wiresim/wiresim/sim/workload"
)

// Scenario is the YAML description of a level: its layout, pre-placed
// wires, source cadences and win/lose policy.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Scenario struct {
	Version       string                   `yaml:"version"`
	Name          string                   `yaml:"name" validate:"required"`
	Seed          *int64                   `yaml:"seed,omitempty"`
	WireBudget    float64                  `yaml:"wire_budget" validate:"gt=0"`
	StartingCoins int                      `yaml:"starting_coins" validate:"gte=0"`
	Engine        EngineSection            `yaml:"engine"`
	Policy        PolicySection            `yaml:"policy"`
	Systems       []SystemEntry            `yaml:"systems" validate:"required,min=1,dive"`
	Wires         []WireEntry              `yaml:"wires" validate:"dive"`
	Cadence       []workload.SourceCadence `yaml:"cadence"`
}

// EngineSection overrides engine defaults; zero values keep the default.
type EngineSection struct {
	BaseSpeed       float64 `yaml:"base_speed" validate:"gte=0"`
	RetryIntervalMs int64   `yaml:"retry_interval_ms" validate:"gte=0"`
	StorageCapacity int     `yaml:"storage_capacity" validate:"gte=0"`
	MaxBends        *int    `yaml:"max_bends,omitempty" validate:"omitempty,gte=0"`
	BendCost        *int    `yaml:"bend_cost,omitempty" validate:"omitempty,gte=0"`
}

// PolicySection maps onto level.Policy.
type PolicySection struct {
	MaxLossPercent  float64 `yaml:"max_loss_percent" validate:"gte=0,lte=100"`
	TimeLimitMs     int64   `yaml:"time_limit_ms" validate:"gte=0"`
	TargetDelivered int     `yaml:"target_delivered" validate:"gte=0"`
}

// SystemEntry describes one system.
type SystemEntry struct {
	Label    string   `yaml:"label" validate:"required"`
	Role     string   `yaml:"role" validate:"required,oneof=source relay sink"`
	X        float64  `yaml:"x"`
	Y        float64  `yaml:"y"`
	Width    float64  `yaml:"width" validate:"gt=0"`
	Height   float64  `yaml:"height" validate:"gt=0"`
	Capacity int      `yaml:"capacity,omitempty" validate:"gte=0"`
	Inputs   []string `yaml:"inputs" validate:"dive,porttype"`
	Outputs  []string `yaml:"outputs" validate:"dive,porttype"`
}

// PortEntry names a port by system label and index.
type PortEntry struct {
	System string `yaml:"system" validate:"required"`
	Port   int    `yaml:"port" validate:"gte=0"`
}

// PointEntry is a bend position.
type PointEntry struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// WireEntry describes a pre-placed wire.
type WireEntry struct {
	From  PortEntry    `yaml:"from"`
	To    PortEntry    `yaml:"to"`
	Bends []PointEntry `yaml:"bends,omitempty"`
}

var scenarioValidate *validator.Validate

func init() {
	scenarioValidate = validator.New()
	_ = scenarioValidate.RegisterValidation("porttype", func(fl validator.FieldLevel) bool {
		_, err := sim.ParsePortType(fl.Field().String())
		return err == nil
	})
}

// LoadScenario reads, parses and validates a scenario file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario from memory.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if sc.Version == "" {
		sc.Version = "1"
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks field constraints and every cadence entry.
func (sc *Scenario) Validate() error {
	if err := scenarioValidate.Struct(sc); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	table := workload.CadenceTable{Version: sc.Version, Sources: sc.Cadence}
	if err := table.Validate(); err != nil {
		return fmt.Errorf("invalid scenario cadence: %w", err)
	}
	for i, c := range sc.Cadence {
		for _, name := range c.Sequence {
			if _, err := sim.ParsePacketKind(name); err != nil {
				return fmt.Errorf("invalid scenario cadence[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// EngineConfig applies the scenario's overrides to the defaults.
func (sc *Scenario) EngineConfig(tickMs int64) sim.EngineConfig {
	cfg := sim.DefaultEngineConfig()
	if tickMs > 0 {
		cfg.TickMs = tickMs
	}
	if sc.Engine.BaseSpeed > 0 {
		cfg.BaseSpeed = sc.Engine.BaseSpeed
	}
	if sc.Engine.RetryIntervalMs > 0 {
		cfg.RetryIntervalMs = sc.Engine.RetryIntervalMs
	}
	if sc.Engine.StorageCapacity > 0 {
		cfg.StorageCapacity = sc.Engine.StorageCapacity
	}
	if sc.Engine.MaxBends != nil {
		cfg.MaxBends = *sc.Engine.MaxBends
	}
	if sc.Engine.BendCost != nil {
		cfg.BendCost = *sc.Engine.BendCost
	}
	return cfg
}

// LevelPolicy returns the level thresholds.
func (sc *Scenario) LevelPolicy() level.Policy {
	return level.Policy{
		MaxLossPercent:  sc.Policy.MaxLossPercent,
		TimeLimitMs:     sc.Policy.TimeLimitMs,
		TargetDelivered: sc.Policy.TargetDelivered,
	}
}

// Blueprint converts the scenario layout into a sim.Blueprint.
func (sc *Scenario) Blueprint() (*sim.Blueprint, error) {
	bp := &sim.Blueprint{Cadence: sc.Cadence}
	for _, e := range sc.Systems {
		role, err := sim.ParseRole(e.Role)
		if err != nil {
			return nil, err
		}
		spec := sim.SystemSpec{
			Label:    e.Label,
			Role:     role,
			X:        e.X,
			Y:        e.Y,
			Width:    e.Width,
			Height:   e.Height,
			Capacity: e.Capacity,
		}
		if spec.Inputs, err = parsePortTypes(e.Inputs); err != nil {
			return nil, fmt.Errorf("system %q: %w", e.Label, err)
		}
		if spec.Outputs, err = parsePortTypes(e.Outputs); err != nil {
			return nil, fmt.Errorf("system %q: %w", e.Label, err)
		}
		bp.Systems = append(bp.Systems, spec)
	}
	for _, w := range sc.Wires {
		spec := sim.WireSpec{
			From: sim.PortRef{System: w.From.System, Index: w.From.Port},
			To:   sim.PortRef{System: w.To.System, Index: w.To.Port},
		}
		for _, b := range w.Bends {
			spec.Bends = append(spec.Bends, geom.Pt(b.X, b.Y))
		}
		bp.Wires = append(bp.Wires, spec)
	}
	return bp, nil
}

func parsePortTypes(names []string) ([]sim.PortType, error) {
	out := make([]sim.PortType, 0, len(names))
	for _, n := range names {
		t, err := sim.ParsePortType(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
