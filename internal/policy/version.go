package policy

import (
	"strconv"
	"strings"
)

// Version is the numeric (major, minor, patch) triple of a version string.
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64

	// Raw is the string the version was parsed from.
	Raw string
}

// ParseVersion reads the leading digits of the first three '.'-separated
// segments. Missing or non-numeric minor and patch segments count as zero; a
// non-numeric major segment makes the version unparseable.
func ParseVersion(s string) (Version, bool) {
	v := Version{Raw: s}

	trimmed := strings.TrimSpace(s)
	if len(trimmed) > 1 && (trimmed[0] == 'v' || trimmed[0] == 'V') {
		trimmed = trimmed[1:]
	}

	segments := strings.SplitN(trimmed, ".", 4)

	major, ok := leadingNumber(segments[0])
	if !ok {
		return Version{}, false
	}
	v.Major = major

	if len(segments) > 1 {
		v.Minor, _ = leadingNumber(segments[1])
	}
	if len(segments) > 2 {
		v.Patch, _ = leadingNumber(segments[2])
	}
	return v, true
}

func leadingNumber(segment string) (uint64, bool) {
	end := 0
	for end < len(segment) && segment[end] >= '0' && segment[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(segment[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Compare returns -1, 0 or 1 when v is lower than, equal to, or higher than o.
// Only the numeric triple takes part.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpUint(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpUint(v.Minor, o.Minor)
	default:
		return cmpUint(v.Patch, o.Patch)
	}
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareTags orders two tags for picking the newest one. Parseable tags rank
// above unparseable ones; equal triples prefer the shorter tag, so "1.4.0"
// beats "1.4.0-rc1", and fall back to byte order to stay deterministic.
func CompareTags(a, b string) int {
	va, okA := ParseVersion(a)
	vb, okB := ParseVersion(b)

	switch {
	case okA && !okB:
		return 1
	case !okA && okB:
		return -1
	case okA && okB:
		if c := va.Compare(vb); c != 0 {
			return c
		}
	}

	switch {
	case len(a) < len(b):
		return 1
	case len(a) > len(b):
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// LatestTag returns the highest-ranked parseable tag. It reports false when
// none of the tags parse as a version.
func LatestTag(tags []string) (string, bool) {
	best := ""
	found := false
	for _, tag := range tags {
		if _, ok := ParseVersion(tag); !ok {
			continue
		}
		if !found || CompareTags(tag, best) > 0 {
			best = tag
			found = true
		}
	}
	return best, found
}
