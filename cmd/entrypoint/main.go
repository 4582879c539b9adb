package main

import (
	"log"

	"civicaid/launcher"
)

// A tiny entrypoint that fires off the maintenance worker in the background
// and then execs the API server as the container's foreground process.
func main() {
	opts := launcher.OptionsFromEnv()
	if err := launcher.Run(opts, launcher.DefaultRunner()); err != nil {
		log.Fatalf("failed to exec %s: %v", opts.ServerBinary, err)
	}
}
