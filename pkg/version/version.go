// Package version provides envelope version parsing and comparison.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the protocol version implemented by this hub.
const Current = "1.0"

// ProtoVersion represents a parsed "major.minor" envelope version.
type ProtoVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (ProtoVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return ProtoVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return ProtoVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return ProtoVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return ProtoVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v ProtoVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v ProtoVersion) Compatible(other ProtoVersion) bool {
	return v.Major == other.Major
}

// Accepts reports whether a peer announcing s can talk to this hub.
// Peers that omit the version field are accepted; devices in the
// field frequently leave it out.
func Accepts(s string) bool {
	if s == "" {
		return true
	}
	peer, err := Parse(s)
	if err != nil {
		return false
	}
	current, err := Parse(Current)
	if err != nil {
		return false
	}
	return current.Compatible(peer)
}
