// Package cli defines the Cobra command tree for edkit. Each file registers
// one top-level command with the root command. Commands build a session from
// flags and config, then delegate to the internal packages.
package cli
