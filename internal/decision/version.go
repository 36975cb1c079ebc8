package decision

import (
	"fmt"
	"strconv"
	"strings"
)

// InitialVersion is the identifier assigned to the bootstrap matrix.
const InitialVersion = "1.0"

// ParseVersion splits a dotted major.minor version identifier.
// Returns ErrInvalidVersion for anything else.
func ParseVersion(v string) (major, minor int, err error) {
	parts := strings.Split(v, ".")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidVersion, v)
	}

	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidVersion, v)
	}

	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidVersion, v)
	}

	if major < 0 || minor < 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidVersion, v)
	}

	return major, minor, nil
}

// NextVersion computes the identifier that follows current. A minor bump
// increments the minor component ("1.0" → "1.1"); a major bump increments
// the major component and resets minor ("1.3" → "2.0").
func NextVersion(current string, bumpMajor bool) (string, error) {
	major, minor, err := ParseVersion(current)
	if err != nil {
		return "", err
	}

	if bumpMajor {
		return fmt.Sprintf("%d.0", major+1), nil
	}
	return fmt.Sprintf("%d.%d", major, minor+1), nil
}

// CompareVersions orders two version identifiers, returning a negative
// value when a precedes b, zero when equal, and a positive value otherwise.
// Invalid identifiers sort before valid ones so history listings stay stable.
func CompareVersions(a, b string) int {
	aMajor, aMinor, aErr := ParseVersion(a)
	bMajor, bMinor, bErr := ParseVersion(b)

	switch {
	case aErr != nil && bErr != nil:
		return strings.Compare(a, b)
	case aErr != nil:
		return -1
	case bErr != nil:
		return 1
	}

	if aMajor != bMajor {
		return aMajor - bMajor
	}
	return aMinor - bMinor
}
