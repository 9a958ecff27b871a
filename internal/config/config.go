// Package config holds the CLI-configurable knobs for an assembly run:
// which input to read, which member kinds to track, how the members arena
// is backed, where the interest policy comes from, and the ambient
// logging/metrics settings shared by every subcommand.
package config

import (
	"fmt"
	"time"
)

// Config holds the global configuration for an assembly run.
type Config struct {
	// Input settings
	InputFile string

	// What to track
	TrackNodes     bool
	TrackWays      bool
	TrackRelations bool

	// Interest policy: at most one of PolicyFile/LuaPolicyFile should be
	// set. Neither set means DefaultConfig()'s keep-everything policy.
	PolicyFile    string // YAML policy file (internal/policy)
	LuaPolicyFile string // Lua policy script (internal/luapolicy)

	// Engine tuning
	PurgeEvery      int    // Relation completions between members-arena compactions; 0 = engine default (10000)
	MembersArenaDir string // If set, the members arena is a disk-backed ByteArena rooted here; empty means an in-memory ObjectArena
	Workers         int    // PBF scanner decode parallelism; 0 = runtime.NumCPU()

	// Output
	ReportFile string // Arrow IPC path for the end-of-run UsedMemory/incomplete-relations snapshot; empty = skip

	// Logging and metrics
	Verbose         bool          // Enable verbose output
	LogFile         string        // Path to log file (empty = no file logging)
	MetricsInterval time.Duration // Interval for system metrics logging
}

// DefaultConfig returns a configuration with sensible defaults: track ways
// and relations (the common multipolygon-assembly case), keep-everything
// policy, in-memory arenas, no report export.
func DefaultConfig() *Config {
	return &Config{
		TrackNodes:      false,
		TrackWays:       true,
		TrackRelations:  false,
		PurgeEvery:      0,
		Verbose:         false,
		LogFile:         "",
		MetricsInterval: 30 * time.Second,
	}
}

// Validate checks that the configuration is usable for a run.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if !c.TrackNodes && !c.TrackWays && !c.TrackRelations {
		return fmt.Errorf("at least one of --track-nodes/--track-ways/--track-relations is required")
	}
	if c.PolicyFile != "" && c.LuaPolicyFile != "" {
		return fmt.Errorf("only one of --policy-file or --lua-policy-file may be set")
	}
	return nil
}
