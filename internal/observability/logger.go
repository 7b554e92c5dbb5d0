package observability

import (
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds the service logger through the shared helper, which also
// installs it as the slog default. format "text" selects a human-readable
// handler; anything else logs JSON.
func NewLogger(level, format string) *slog.Logger {
	return sharedobs.NewLogger(level, format)
}
