package main

import (
	"github.com/joho/godotenv"

	"github.com/recorder-dev/recorder-runner/pkg/cli"
)

func main() {
	// Load .env from the working directory so API keys and RECORDER_*
	// settings can live next to the recordings. Missing file is fine.
	_ = godotenv.Load()

	cli.Execute()
}
