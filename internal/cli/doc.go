// Package cli implements the gorgon command-line interface.
//
// Each Cobra command parses its flags and delegates to a plain function
// that takes an io.Writer and explicit options, so commands can be driven
// from tests without a terminal. Every command that touches the pipeline
// goes through openStack, which finds and validates .gorgon.yaml and builds
// the hub and its crabs with the topology package.
//
// # Command Structure
//
//	gorgon collect        - Run hub cycles and print snapshots
//	gorgon bell [crab]    - Threshold status lines for one crab
//	gorgon agent <crab>   - Run one crab's polling loop
//	gorgon crabs          - List configured crabs
//	gorgon watch          - Live dashboard
//	gorgon serve          - Hub loop with a Prometheus /metrics endpoint
//	gorgon init           - Create .gorgon.yaml
//	gorgon doctor         - Diagnose config, SSH and crab problems
//	gorgon version        - Build information
//
// # Output
//
// The global --json flag switches every command to a single JSON envelope
// on stdout ({"success": ..., "data": ..., "error": ...}). Errors map to
// stable codes such as CONFIG_INVALID or CYCLE_PARTIAL.
package cli
