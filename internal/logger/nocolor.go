package logger

import "os"

// Respect the "NO_COLOR" convention: https://no-color.org/
func hasNoColorEnvironmentVariable() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}
