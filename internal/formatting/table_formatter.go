package formatting

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/duration"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

// TableFormatter provides table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	if options.Now == nil {
		options.Now = time.Now
	}
	return &TableFormatter{options: options}
}

// FormatUpdateRequests writes one row per request.
func (f *TableFormatter) FormatUpdateRequests(w io.Writer, items []headwindv1alpha1.UpdateRequest) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No update requests found")
		return err
	}

	wide := f.options.Format == FormatWide
	t := f.createTable()

	if !f.options.NoHeaders {
		header := table.Row{"Namespace", "Name", "Kind", "Target", "Current", "New", "Phase", "Age"}
		if wide {
			header = append(header, "Approval", "Expires", "Message")
		}
		t.AppendHeader(header)
	}

	now := f.options.Now()
	for i := range items {
		ur := &items[i]
		row := table.Row{
			ur.Namespace,
			ur.Name,
			ur.Spec.TargetRef.Kind,
			ur.Spec.TargetRef.Name,
			orDash(ur.Spec.CurrentImage),
			ur.Spec.NewImage,
			f.phase(ur.Status.Phase),
			age(ur.CreationTimestamp, now),
		}
		if wide {
			row = append(row, approval(ur), expires(ur.Spec.ExpiresAt, now), orDash(ur.Status.Message))
		}
		t.AppendRow(row)
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// FormatUpdateRequest writes a key/value view of ur.
func (f *TableFormatter) FormatUpdateRequest(w io.Writer, ur *headwindv1alpha1.UpdateRequest) error {
	now := f.options.Now()
	t := f.createTable()
	if !f.options.NoHeaders {
		t.AppendHeader(table.Row{"Field", "Value"})
	}

	t.AppendRows([]table.Row{
		{"Name", ur.Name},
		{"Namespace", ur.Namespace},
		{"Target", fmt.Sprintf("%s/%s", ur.Spec.TargetRef.Kind, ur.Spec.TargetRef.Name)},
		{"Update Type", ur.Spec.UpdateType},
		{"Container", orDash(ur.Spec.ContainerName)},
		{"Current", orDash(ur.Spec.CurrentImage)},
		{"New", ur.Spec.NewImage},
		{"Policy", orDash(ur.Spec.Policy)},
		{"Reason", orDash(ur.Spec.Reason)},
		{"Phase", f.phase(ur.Status.Phase)},
		{"Approval", approval(ur)},
		{"Expires", expires(ur.Spec.ExpiresAt, now)},
		{"Message", orDash(ur.Status.Message)},
		{"Age", age(ur.CreationTimestamp, now)},
	})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// createTable creates a borderless table in the style of kubectl get.
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	t.Style().Options.SeparateHeader = false
	t.Style().Options.SeparateRows = false
	t.Style().Box.PaddingLeft = ""
	t.Style().Box.PaddingRight = "   "
	return t
}

func (f *TableFormatter) phase(p headwindv1alpha1.UpdatePhase) string {
	if p == "" {
		return "-"
	}
	if !f.options.Color {
		return string(p)
	}
	switch p {
	case headwindv1alpha1.PhasePending:
		return text.FgYellow.Sprint(p)
	case headwindv1alpha1.PhaseApproved:
		return text.FgCyan.Sprint(p)
	case headwindv1alpha1.PhaseCompleted:
		return text.FgGreen.Sprint(p)
	case headwindv1alpha1.PhaseRejected, headwindv1alpha1.PhaseFailed:
		return text.FgRed.Sprint(p)
	}
	return string(p)
}

func approval(ur *headwindv1alpha1.UpdateRequest) string {
	switch {
	case ur.Status.ApprovedBy != "":
		return "approved by " + ur.Status.ApprovedBy
	case ur.Status.RejectedBy != "":
		return "rejected by " + ur.Status.RejectedBy
	case ur.Spec.RequireApproval:
		return "required"
	}
	return "not required"
}

func age(created metav1.Time, now time.Time) string {
	if created.IsZero() {
		return "<unknown>"
	}
	return duration.HumanDuration(now.Sub(created.Time))
}

func expires(at *metav1.Time, now time.Time) string {
	if at == nil {
		return "never"
	}
	if !now.Before(at.Time) {
		return "expired"
	}
	return "in " + duration.HumanDuration(at.Time.Sub(now))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
