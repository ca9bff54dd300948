package random

import (
	"crypto/rand"
	"fmt"
)

// CollisionResistantLength is a byte length long enough that two
// independently generated values are vanishingly unlikely to collide,
// suitable for staging root names and other identifiers that must not
// clash across concurrent collection runs on the same host.
const CollisionResistantLength = 32

// New returns a byte slice of the specified length with cryptographically
// random conents.
func New(length int) ([]byte, error) {
	// Create the buffer.
	result := make([]byte, length)

	// Read random data.
	if _, err := rand.Read(result[:]); err != nil {
		return nil, fmt.Errorf("unable to read random data: %w", err)
	}

	// Success.
	return result, nil
}
