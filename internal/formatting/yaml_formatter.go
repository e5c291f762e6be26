package formatting

import (
	"fmt"
	"io"

	"sigs.k8s.io/yaml"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

// YAMLFormatter provides YAML output formatting. It goes through the JSON
// tags so metav1 types serialize the way kubectl prints them.
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{options: options}
}

// FormatUpdateRequests writes items as an UpdateRequestList.
func (f *YAMLFormatter) FormatUpdateRequests(w io.Writer, items []headwindv1alpha1.UpdateRequest) error {
	return f.write(w, listOf(items))
}

// FormatUpdateRequest writes a single UpdateRequest.
func (f *YAMLFormatter) FormatUpdateRequest(w io.Writer, ur *headwindv1alpha1.UpdateRequest) error {
	return f.write(w, withTypeMeta(ur))
}

func (f *YAMLFormatter) write(w io.Writer, v interface{}) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	_, err = w.Write(out)
	return err
}
