// Package humansize provides byte-count parsing for manifest global options
// and sink configuration (buffer sizes, size limits) that accept both
// numeric and human-friendly ("8MB", "100 MiB") representations.
package humansize

import (
	"github.com/dustin/go-humanize"
)

// ByteSize is a uint64 value that supports parsing from both human-friendly
// string representations and plain numeric representations.
type ByteSize uint64

// MiB is one mebibyte, for converting the manifest's plain-integer
// "*_mb"-suffixed global option keys into a ByteSize.
const MiB ByteSize = 1 << 20

// ParseByteSize parses a string such as "8MB" or "5242880" into a ByteSize.
func ParseByteSize(text string) (ByteSize, error) {
	value, err := humanize.ParseBytes(text)
	if err != nil {
		return 0, err
	}
	return ByteSize(value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize can be used
// directly in struct fields populated by a driver-side decoder.
func (s *ByteSize) UnmarshalText(textBytes []byte) error {
	value, err := ParseByteSize(string(textBytes))
	if err != nil {
		return err
	}
	*s = value
	return nil
}

// Bytes returns the size as a plain uint64 byte count.
func (s ByteSize) Bytes() uint64 {
	return uint64(s)
}

// String returns a human-readable representation of the size.
func (s ByteSize) String() string {
	return humanize.Bytes(uint64(s))
}
