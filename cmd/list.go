package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	hwclient "github.com/headwind-sh/headwind/internal/client"
	"github.com/headwind-sh/headwind/internal/formatting"
	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

var (
	listOutputFormat  string
	listNoHeaders     bool
	listAllNamespaces bool
	listPhase         string
	listColor         bool
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List UpdateRequests",
		Long: `List UpdateRequests in a namespace, or in all namespaces with -A.

Output formats:
  table  - kubectl-style table (default)
  wide   - table with approval, expiry and message columns
  json   - UpdateRequestList as JSON
  yaml   - UpdateRequestList as YAML

Examples:
  headwind list
  headwind list -A --phase Pending
  headwind list -n apps -o yaml`,
		Args: cobra.NoArgs,
		RunE: runList,
	}

	cmd.Flags().StringVarP(&listOutputFormat, "output", "o", "table", "Output format (table, wide, json, yaml)")
	cmd.Flags().BoolVar(&listNoHeaders, "no-headers", false, "Do not print table headers")
	cmd.Flags().BoolVarP(&listAllNamespaces, "all-namespaces", "A", false, "List UpdateRequests across all namespaces")
	cmd.Flags().StringVar(&listPhase, "phase", "", "Only list UpdateRequests in this phase")
	cmd.Flags().BoolVar(&listColor, "color", false, "Colorize phases in table output")
	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := formatting.ParseFormat(listOutputFormat)
	if err != nil {
		return err
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	ns := namespace
	if listAllNamespaces {
		ns = ""
	}

	items, err := hwclient.NewFromClient(c).ListUpdateRequests(cmd.Context(), ns)
	if err != nil {
		return err
	}
	items = filterByPhase(items, listPhase)

	f := formatting.NewFormatter(formatting.Options{
		Format:    format,
		NoHeaders: listNoHeaders,
		Color:     listColor,
	})
	if err := f.FormatUpdateRequests(cmd.OutOrStdout(), items); err != nil {
		return fmt.Errorf("failed to print update requests: %w", err)
	}
	return nil
}

func filterByPhase(items []headwindv1alpha1.UpdateRequest, phase string) []headwindv1alpha1.UpdateRequest {
	if phase == "" {
		return items
	}
	var out []headwindv1alpha1.UpdateRequest
	for _, ur := range items {
		if strings.EqualFold(string(ur.Status.Phase), phase) {
			out = append(out, ur)
		}
	}
	return out
}
