package env

import (
	"os"
	"strings"
)

// Get reads an environment variable, returning fallback when it is unset or
// blank.
func Get(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
