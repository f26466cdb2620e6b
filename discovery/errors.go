package discovery

import (
	"errors"
	"fmt"
)

// ErrNoSeeds is returned when there is nothing to gossip with.
var ErrNoSeeds = errors.New("no gossip seeds configured")

// DiscoveryError is returned when no suitable member was found after all
// discovery attempts.
type DiscoveryError struct {
	// Attempts is the number of rounds made, which equals the configured maximum.
	Attempts int
	// Err is the failure of the last round, if any.
	Err error
}

func (e *DiscoveryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to discover a cluster member after %d attempts", e.Attempts)
	}

	return fmt.Sprintf("failed to discover a cluster member after %d attempts: %v", e.Attempts, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
