// triagectl - developer tooling for the PawCare triage pipeline
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pawcare-labs/pawcare/internal/cli"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
