package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// DefaultRegistry is assumed for references without a registry host.
const DefaultRegistry = "docker.io"

// ErrPinnedByDigest is returned by ParseImage for digest references.
var ErrPinnedByDigest = errors.New("pinned by digest")

// ParseImage splits an image reference on its last ':' into repository and
// tag. References without a tag, with a digest, or whose text after the last
// ':' contains '/' (a registry port with no tag) are rejected.
func ParseImage(image string) (repository, tag string, err error) {
	if strings.Contains(image, "@") {
		return "", "", fmt.Errorf("image %q is %w", image, ErrPinnedByDigest)
	}
	i := strings.LastIndex(image, ":")
	if i <= 0 || i == len(image)-1 {
		return "", "", fmt.Errorf("image %q has no tag", image)
	}
	repository, tag = image[:i], image[i+1:]
	if strings.Contains(tag, "/") {
		return "", "", fmt.Errorf("image %q has no tag", image)
	}
	return repository, tag, nil
}

// ExtractRegistry returns the registry host of an image reference, or
// docker.io when the reference has none.
func ExtractRegistry(image string) string {
	if image == "" {
		return DefaultRegistry
	}
	ref, err := name.ParseReference(image, name.WithDefaultRegistry(DefaultRegistry))
	if err != nil {
		// Fall back to the first path element when it looks like a host.
		first, _, found := strings.Cut(image, "/")
		if found && (strings.ContainsAny(first, ".:") || first == "localhost") {
			return first
		}
		return DefaultRegistry
	}
	reg := ref.Context().RegistryStr()
	if reg == name.DefaultRegistry || reg == DefaultRegistry {
		return DefaultRegistry
	}
	return reg
}

// SameRepository reports whether two repository strings name the same
// repository once registry defaults are applied, so "nginx",
// "library/nginx" and "docker.io/library/nginx" are equal.
func SameRepository(a, b string) bool {
	if a == b {
		return true
	}
	ra, errA := name.NewRepository(a)
	rb, errB := name.NewRepository(b)
	if errA != nil || errB != nil {
		return false
	}
	return ra.Name() == rb.Name()
}

// MatchesImage reports whether image is repository at some tag or digest.
// This is the prefix match used to find the container to patch.
func MatchesImage(image, repository string) bool {
	if image == repository {
		return true
	}
	if strings.HasPrefix(image, repository+":") || strings.HasPrefix(image, repository+"@") {
		return true
	}
	repo, _, err := ParseImage(image)
	if err != nil {
		return false
	}
	return SameRepository(repo, repository)
}
