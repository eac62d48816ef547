// Birdhouse - outlet scheduling and weather logging daemon.
//
// The daemon switches the birdhouse outlets (heat lamp, feeder, lights) on
// cron schedules, forces them all on for a while after motion is seen, and
// keeps a rolling log of DHT22 weather samples.
//
// Sub-commands:
//
//	birdhouse run            start the daemon (default)
//	birdhouse outlets        list outlets with their live GPIO level
//	birdhouse outlets seed   write the outlets section of the config to the store
//	birdhouse migrate        apply (or with --down, roll back) schema migrations
//	birdhouse version        print build information
package main

import (
	"fmt"
	"os"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
