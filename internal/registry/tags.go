package registry

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/crane"
)

// TagLister lists the tags of a repository.
type TagLister interface {
	ListTags(ctx context.Context, repository string) ([]string, error)
}

// CraneLister lists tags through the registry API using the local docker
// keychain for credentials.
type CraneLister struct {
	insecure bool
}

// NewCraneLister creates a CraneLister. Insecure allows plain HTTP registries.
func NewCraneLister(insecure bool) *CraneLister {
	return &CraneLister{insecure: insecure}
}

// ListTags implements TagLister.
func (l *CraneLister) ListTags(ctx context.Context, repository string) ([]string, error) {
	opts := []crane.Option{
		crane.WithContext(ctx),
		crane.WithAuthFromKeychain(authn.DefaultKeychain),
	}
	if l.insecure {
		opts = append(opts, crane.Insecure)
	}

	tags, err := crane.ListTags(repository, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags for %s: %w", repository, err)
	}
	return tags, nil
}
