// Package workload defines per-source generation cadences: how often a
// Source emits, which packet kinds it emits in which order, and burst
// patterns. It stores pure data and has no dependencies on sim/.
package workload

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// CadenceTable is the top-level cadence configuration of a level.
// Loaded from YAML via LoadCadenceTable(path).
type CadenceTable struct {
	Version string          `yaml:"version"`
	Sources []SourceCadence `yaml:"sources"`
}

// SourceCadence drives one Source.
type SourceCadence struct {
	System     string      `yaml:"system"`
	IntervalMs float64     `yaml:"interval_ms"`
	Arrival    ArrivalSpec `yaml:"arrival"`
	Sequence   []string    `yaml:"sequence"` // packet kinds, cycled
	Bursts     []BurstSpec `yaml:"bursts,omitempty"`
	StartMs    int64       `yaml:"start_ms,omitempty"`
	StopMs     int64       `yaml:"stop_ms,omitempty"` // 0 = never stops
	Count      int         `yaml:"count,omitempty"`   // 0 = unlimited
}

// ArrivalSpec configures the inter-arrival time process.
type ArrivalSpec struct {
	Process string   `yaml:"process"`
	CV      *float64 `yaml:"cv,omitempty"`
}

// BurstSpec makes every Every-th emission produce Size packets at once.
type BurstSpec struct {
	Every int `yaml:"every"`
	Size  int `yaml:"size"`
}

var validArrivalProcesses = map[string]bool{
	"": true, "constant": true, "poisson": true, "gamma": true, "weibull": true,
}

// LoadCadenceTable reads and parses a YAML cadence table.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadCadenceTable(path string) (*CadenceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cadence table: %w", err)
	}
	return ParseCadenceTable(data)
}

// ParseCadenceTable parses a YAML cadence table from memory.
func ParseCadenceTable(data []byte) (*CadenceTable, error) {
	var table CadenceTable
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&table); err != nil {
		return nil, fmt.Errorf("parsing cadence table: %w", err)
	}
	if table.Version == "" {
		table.Version = "1"
	}
	return &table, nil
}

// Validate checks every source entry.
func (t *CadenceTable) Validate() error {
	seen := make(map[string]bool, len(t.Sources))
	for i := range t.Sources {
		if err := t.Sources[i].Validate(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if seen[t.Sources[i].System] {
			return fmt.Errorf("sources[%d]: duplicate system %q", i, t.Sources[i].System)
		}
		seen[t.Sources[i].System] = true
	}
	return nil
}

// Validate checks that all fields of the cadence are usable.
func (c *SourceCadence) Validate() error {
	if c.System == "" {
		return fmt.Errorf("system label required")
	}
	if math.IsNaN(c.IntervalMs) || math.IsInf(c.IntervalMs, 0) || c.IntervalMs <= 0 {
		return fmt.Errorf("%s: interval_ms must be a positive finite number, got %f", c.System, c.IntervalMs)
	}
	if !validArrivalProcesses[c.Arrival.Process] {
		return fmt.Errorf("%s: unknown arrival process %q; valid: constant, poisson, gamma, weibull", c.System, c.Arrival.Process)
	}
	if c.Arrival.CV != nil {
		cv := *c.Arrival.CV
		if math.IsNaN(cv) || math.IsInf(cv, 0) || cv <= 0 {
			return fmt.Errorf("%s: cv must be a positive finite number, got %f", c.System, cv)
		}
		if c.Arrival.Process == "weibull" && (cv < 0.01 || cv > 10.4) {
			return fmt.Errorf("%s: weibull CV must be in [0.01, 10.4], got %f", c.System, cv)
		}
	}
	if len(c.Sequence) == 0 {
		return fmt.Errorf("%s: sequence must name at least one packet kind", c.System)
	}
	for j, b := range c.Bursts {
		if b.Every <= 0 || b.Size <= 0 {
			return fmt.Errorf("%s: bursts[%d]: every and size must be positive, got %d/%d", c.System, j, b.Every, b.Size)
		}
	}
	if c.StartMs < 0 {
		return fmt.Errorf("%s: start_ms must be non-negative, got %d", c.System, c.StartMs)
	}
	if c.StopMs != 0 && c.StopMs <= c.StartMs {
		return fmt.Errorf("%s: stop_ms (%d) must be after start_ms (%d)", c.System, c.StopMs, c.StartMs)
	}
	if c.Count < 0 {
		return fmt.Errorf("%s: count must be non-negative, got %d", c.System, c.Count)
	}
	return nil
}
