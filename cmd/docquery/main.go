// cmd/docquery/main.go
package main

import (
	"github.com/joho/godotenv"

	"docquery/internal/commands"
)

// main loads any .env file for the service API keys, then delegates to the
// cobra root command.
func main() {
	_ = godotenv.Load()
	commands.Execute()
}
