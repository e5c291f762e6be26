package updaterequest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

const (
	hashLength = 8

	// maxNameLength is the DNS-1123 subdomain limit for object names.
	maxNameLength = 253
)

// Name derives the UpdateRequest name for proposing version on repository of
// target. The same inputs always give the same name, so at most one request
// exists per target and candidate.
func Name(target headwindv1alpha1.TargetRef, repository, version string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		target.Kind, target.Namespace, target.Name, repository, version,
	}, "/")))
	suffix := hex.EncodeToString(sum[:])[:hashLength]

	prefix := sanitize(target.Name)
	if v := sanitize(version); v != "" {
		prefix += "-" + v
	}

	if limit := maxNameLength - hashLength - 1; len(prefix) > limit {
		prefix = strings.TrimRight(prefix[:limit], "-")
	}
	if prefix == "" {
		return suffix
	}
	return prefix + "-" + suffix
}

// sanitize lowercases s and replaces everything outside [a-z0-9] with '-',
// collapsing runs and trimming the ends.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
