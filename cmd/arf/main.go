// Command arf runs the adaptive radial filter against a digitizer report
// stream, replays stroke traces and soak tests the sampler.
//
// Usage:
//
//	arf run --config ~/.config/arf/arf.toml
//	arf replay --synthetic sharp-stop
//	arf soak --duration 1h
package main

import (
	"os"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
