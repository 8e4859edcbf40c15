// Package version identifies the SDK build toward services it talks to.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the SDK version reported to the hub and provisioning service.
const Current = "1.0.0"

// APIVersion is the service API version negotiated on connect.
const APIVersion = "2024-06-01"

// name is the SDK identifier used in user agent strings.
const name = "devicekit-go"

// UserAgent returns the user agent string sent with service requests.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", name, Current)
}

// SDKVersion represents a parsed "major.minor.patch" SDK version.
type SDKVersion struct {
	Major uint16
	Minor uint16
	Patch uint16
}

// Parse parses a "major.minor.patch" version string.
func Parse(s string) (SDKVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return SDKVersion{}, fmt.Errorf("invalid version %q: expected major.minor.patch", s)
	}

	nums := make([]uint16, 3)
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 16)
		if err != nil || part == "" {
			return SDKVersion{}, fmt.Errorf("invalid version %q: bad component %q", s, part)
		}
		nums[i] = uint16(n)
	}

	return SDKVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String returns the version as "major.minor.patch".
func (v SDKVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible returns true if the other version has the same major version.
func (v SDKVersion) Compatible(other SDKVersion) bool {
	return v.Major == other.Major
}
