package formatting

import (
	"fmt"
	"io"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

// JSONFormatter provides JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{options: options}
}

// FormatUpdateRequests writes items as an UpdateRequestList.
func (f *JSONFormatter) FormatUpdateRequests(w io.Writer, items []headwindv1alpha1.UpdateRequest) error {
	_, err := fmt.Fprintln(w, PrettyJSON(listOf(items)))
	return err
}

// FormatUpdateRequest writes a single UpdateRequest.
func (f *JSONFormatter) FormatUpdateRequest(w io.Writer, ur *headwindv1alpha1.UpdateRequest) error {
	_, err := fmt.Fprintln(w, PrettyJSON(withTypeMeta(ur)))
	return err
}
