// Package bytesize provides a ByteSize type for configuration fields that
// accept human-readable sizes such as "10Mi", "512Ki", "1GB", or plain
// byte counts.
package bytesize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ByteSize represents a size in bytes.
//
// Supported input formats:
//   - Plain numbers: 1024, 10485760
//   - Binary units (x1024): Ki/KiB, Mi/MiB, Gi/GiB, Ti/TiB
//   - Decimal units (x1000): K/KB, M/MB, G/GB, T/TB
//   - Bytes: B
//
// Unit suffixes are case-insensitive and may be separated from the number
// by whitespace, so "10Mi", "10 mi", and "10485760" all parse to the same
// value.
type ByteSize uint64

// Common byte size constants
const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

// sizePattern matches a non-negative number followed by an optional unit suffix.
var sizePattern = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*([a-z]*)\s*$`)

// unitMultiplier resolves a (lowercased) unit suffix to its byte multiplier.
func unitMultiplier(unit string) (ByteSize, bool) {
	switch unit {
	case "", "b":
		return B, true
	case "k", "kb":
		return KB, true
	case "m", "mb":
		return MB, true
	case "g", "gb":
		return GB, true
	case "t", "tb":
		return TB, true
	case "ki", "kib":
		return KiB, true
	case "mi", "mib":
		return MiB, true
	case "gi", "gib":
		return GiB, true
	case "ti", "tib":
		return TiB, true
	default:
		return 0, false
	}
}

// ParseByteSize parses a human-readable byte size string into a ByteSize.
// It accepts formats like "1Gi", "500Mi", "100MB", "1024", etc.
func ParseByteSize(s string) (ByteSize, error) {
	if strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid byte size format: %q", s)
	}

	numStr := matches[1]
	multiplier, ok := unitMultiplier(strings.ToLower(matches[2]))
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", matches[2])
	}

	// Fractional sizes like "1.5Mi" are allowed and truncated to whole bytes
	if strings.Contains(numStr, ".") {
		num, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in byte size: %q", numStr)
		}
		return ByteSize(num * float64(multiplier)), nil
	}

	num, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in byte size: %q", numStr)
	}

	return ByteSize(num) * multiplier, nil
}

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize fields can
// be decoded from config files and environment variables.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText implements encoding.TextMarshaler. The output is lossless:
// exact multiples of a binary unit use the short suffix ("10Mi"), anything
// else is written as a plain byte count. MarshalText output always parses
// back to the same value, unlike String which rounds for readability.
func (b ByteSize) MarshalText() ([]byte, error) {
	switch {
	case b == 0:
		return []byte("0"), nil
	case b%TiB == 0:
		return []byte(fmt.Sprintf("%dTi", b/TiB)), nil
	case b%GiB == 0:
		return []byte(fmt.Sprintf("%dGi", b/GiB)), nil
	case b%MiB == 0:
		return []byte(fmt.Sprintf("%dMi", b/MiB)), nil
	case b%KiB == 0:
		return []byte(fmt.Sprintf("%dKi", b/KiB)), nil
	default:
		return []byte(strconv.FormatUint(uint64(b), 10)), nil
	}
}

// MarshalYAML writes the MarshalText form. The yaml package does not use
// encoding.TextMarshaler on its own, so config files saved with yaml.Marshal
// would otherwise contain raw byte counts.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	text, err := b.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(text), nil
}

// UnmarshalYAML accepts both quoted size strings ("10Mi") and plain
// integers (10485760).
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("byte size must be a scalar value")
	}
	return b.UnmarshalText([]byte(value.Value))
}

// String returns a human-readable representation, rounded to two decimals.
func (b ByteSize) String() string {
	switch {
	case b >= TiB:
		return fmt.Sprintf("%.2fTiB", float64(b)/float64(TiB))
	case b >= GiB:
		return fmt.Sprintf("%.2fGiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.2fMiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.2fKiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// Uint64 returns the ByteSize as a uint64.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}

// Int64 returns the ByteSize as an int64.
// Note: This may overflow for very large values.
func (b ByteSize) Int64() int64 {
	return int64(b)
}

// Int returns the ByteSize as an int, for APIs that take buffer lengths.
func (b ByteSize) Int() int {
	return int(b)
}
