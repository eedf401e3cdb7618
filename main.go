// =============================================================================
// Pay Equity Processor - Main Entry Point
// =============================================================================
//
// This is the main entry point for the payequity CLI. It delegates command
// execution to the cmd package.
//
// USAGE:
//   payequity process       - Process a register file or a directory of them
//   payequity serve         - Run the web upload adapter
//   payequity update        - Check the update feed for a newer version
//   payequity version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Pipeline stages and adapters (not for external import)
//   - pkg/           : Shared utilities (logging, file management)
//   - layouts/       : Optional extra layout profiles
//   - templates/     : Optional report template
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/payequity/cmd"
)

func main() {
	cmd.Execute()
}
