// Package formatting renders UpdateRequests for the command line.
//
// Four output formats are supported: a kubectl-style table, a wide table
// with approval details, JSON and YAML. JSON and YAML output use the
// Kubernetes field names so the output can be fed back to kubectl.
package formatting

import (
	"fmt"
	"io"
	"strings"
	"time"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // kubectl-style table
	FormatWide  OutputFormat = "wide"  // table with approval columns
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ValidFormats lists every supported output format.
var ValidFormats = []OutputFormat{FormatTable, FormatWide, FormatJSON, FormatYAML}

// ParseFormat validates s as an output format. Matching is case
// insensitive.
func ParseFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range ValidFormats {
		if f == valid {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %q (valid: table, wide, json, yaml)", s)
}

// Options configures the formatter behavior
type Options struct {
	Format    OutputFormat
	NoHeaders bool // Suppress the table header row
	Color     bool // Colorize phases in tables

	// Now is used to compute ages. Defaults to time.Now.
	Now func() time.Time
}

// Formatter renders UpdateRequests.
type Formatter interface {
	FormatUpdateRequests(w io.Writer, items []headwindv1alpha1.UpdateRequest) error
	FormatUpdateRequest(w io.Writer, ur *headwindv1alpha1.UpdateRequest) error
}

// NewFormatter creates the formatter for options.Format. Unknown formats
// fall back to a table.
func NewFormatter(options Options) Formatter {
	if options.Now == nil {
		options.Now = time.Now
	}
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	default:
		return NewTableFormatter(options)
	}
}

// listOf wraps items in a typed list for the serialized formats.
func listOf(items []headwindv1alpha1.UpdateRequest) *headwindv1alpha1.UpdateRequestList {
	if items == nil {
		items = []headwindv1alpha1.UpdateRequest{}
	}
	list := &headwindv1alpha1.UpdateRequestList{Items: items}
	list.APIVersion = headwindv1alpha1.GroupVersion.String()
	list.Kind = "UpdateRequestList"
	return list
}

// withTypeMeta returns a copy of ur with its apiVersion and kind set.
func withTypeMeta(ur *headwindv1alpha1.UpdateRequest) *headwindv1alpha1.UpdateRequest {
	out := ur.DeepCopy()
	out.APIVersion = headwindv1alpha1.GroupVersion.String()
	out.Kind = "UpdateRequest"
	return out
}
