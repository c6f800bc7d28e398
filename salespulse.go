package main

import (
	"github.com/joho/godotenv"

	cli "github.com/salespulse/bridge/cmd/salespulse"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	cli.Execute()
}
