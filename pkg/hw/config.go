// Package hw describes the register file of a target shader core.
// A Config is selected once per compilation and passed into graph
// construction; hardware generation differences are expressed as
// plain fields rather than per-generation code paths.
package hw

import (
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
)

// Config holds the hardware constants consumed by the register allocator.
type Config struct {
	// Name of the preset this config was derived from
	Name string `yaml:"name"`
	// Slots is the total number of physical register slots
	Slots int `yaml:"slots"`
	// PayloadSlots is the number of thread payload slots delivered in [0, PayloadSlots)
	PayloadSlots int `yaml:"payload_slots"`
	// AliasWindow is the number of high slots reused as message registers (0 = real message registers)
	AliasWindow int `yaml:"alias_window"`
	// SlotBytes is the width of one slot in bytes
	SlotBytes int `yaml:"slot_bytes"`
	// SpillAlign is the scratch offset alignment for spilled values
	SpillAlign int `yaml:"spill_align"`
	// LoopWeight scales spill cost per loop nesting level
	LoopWeight float64 `yaml:"loop_weight"`
}

var presets = map[string]Config{
	"gen6": {
		Name:         "gen6",
		Slots:        128,
		PayloadSlots: 2,
		AliasWindow:  0,
		SlotBytes:    32,
		SpillAlign:   32,
		LoopWeight:   10,
	},
	"gen7": {
		Name:         "gen7",
		Slots:        128,
		PayloadSlots: 2,
		AliasWindow:  16,
		SlotBytes:    32,
		SpillAlign:   32,
		LoopWeight:   10,
	},
	"gen8": {
		Name:         "gen8",
		Slots:        128,
		PayloadSlots: 2,
		AliasWindow:  16,
		SlotBytes:    32,
		SpillAlign:   32,
		LoopWeight:   10,
	},
}

// DefaultGeneration is used when no preset is named
const DefaultGeneration = "gen7"

// Lookup returns the preset for a hardware generation.
func Lookup(name string) (Config, error) {
	if name == "" {
		name = DefaultGeneration
	}
	c, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown hardware generation %q (known: %v)", name, Generations())
	}
	return c, nil
}

// Generations lists the known preset names in sorted order.
func Generations() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasAliasWindow reports whether message registers alias the top of the file
func (c Config) HasAliasWindow() bool {
	return c.AliasWindow > 0
}

// AliasBase returns the first physical slot of the aliasing window
func (c Config) AliasBase() int {
	return c.Slots - c.AliasWindow
}

// Validate checks that the constants describe a usable register file.
func (c Config) Validate() error {
	switch {
	case c.Slots <= 0:
		return fmt.Errorf("hw %s: slot count must be positive, got %d", c.Name, c.Slots)
	case c.PayloadSlots < 0:
		return fmt.Errorf("hw %s: negative payload slot count %d", c.Name, c.PayloadSlots)
	case c.AliasWindow < 0:
		return fmt.Errorf("hw %s: negative alias window %d", c.Name, c.AliasWindow)
	case c.PayloadSlots+c.AliasWindow > c.Slots:
		return fmt.Errorf("hw %s: payload (%d) and alias window (%d) exceed %d slots",
			c.Name, c.PayloadSlots, c.AliasWindow, c.Slots)
	case c.SlotBytes <= 0:
		return fmt.Errorf("hw %s: slot width must be positive, got %d", c.Name, c.SlotBytes)
	case c.SpillAlign <= 0 || c.SpillAlign&(c.SpillAlign-1) != 0:
		return fmt.Errorf("hw %s: spill alignment must be a power of two, got %d", c.Name, c.SpillAlign)
	case c.LoopWeight < 1:
		return fmt.Errorf("hw %s: loop weight must be at least 1, got %g", c.Name, c.LoopWeight)
	}
	return nil
}

// fileConfig is the on-disk form: a preset plus optional overrides
type fileConfig struct {
	Generation   string   `yaml:"generation"`
	Slots        *int     `yaml:"slots"`
	PayloadSlots *int     `yaml:"payload_slots"`
	AliasWindow  *int     `yaml:"alias_window"`
	SlotBytes    *int     `yaml:"slot_bytes"`
	SpillAlign   *int     `yaml:"spill_align"`
	LoopWeight   *float64 `yaml:"loop_weight"`
}

// Load reads a YAML hardware description from path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading hardware config")
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "%s", path)
	}
	return c, nil
}

// Parse decodes a YAML hardware description. Fields left out keep the
// value of the named generation preset.
func Parse(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, errors.Wrap(err, "decoding hardware config")
	}
	c, err := Lookup(fc.Generation)
	if err != nil {
		return Config{}, err
	}
	if fc.Slots != nil {
		c.Slots = *fc.Slots
	}
	if fc.PayloadSlots != nil {
		c.PayloadSlots = *fc.PayloadSlots
	}
	if fc.AliasWindow != nil {
		c.AliasWindow = *fc.AliasWindow
	}
	if fc.SlotBytes != nil {
		c.SlotBytes = *fc.SlotBytes
	}
	if fc.SpillAlign != nil {
		c.SpillAlign = *fc.SpillAlign
	}
	if fc.LoopWeight != nil {
		c.LoopWeight = *fc.LoopWeight
	}
	return c, c.Validate()
}

// Environment variables consulted by ApplyEnv
const (
	EnvSlots       = "RALPH_RA_SLOTS"
	EnvPayload     = "RALPH_RA_PAYLOAD"
	EnvAliasWindow = "RALPH_RA_ALIAS_WINDOW"
	EnvLoopWeight  = "RALPH_RA_LOOP_WEIGHT"
)

// ApplyEnv returns c with any RALPH_RA_* overrides from the current
// environment applied. Values that do not parse keep the setting from c.
func ApplyEnv(c Config) Config {
	env.Load()
	c.Slots = env.Int(EnvSlots, c.Slots)
	c.PayloadSlots = env.Int(EnvPayload, c.PayloadSlots)
	c.AliasWindow = env.Int(EnvAliasWindow, c.AliasWindow)
	c.LoopWeight = env.Float64(EnvLoopWeight, c.LoopWeight)
	return c
}
