package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/types"

	"github.com/headwind-sh/headwind/internal/updaterequest"
	"github.com/headwind-sh/headwind/internal/workload"
)

var (
	approveActor string
	rejectActor  string
	rejectReason string
)

func newApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <name>",
		Short: "Approve a pending UpdateRequest",
		Long: `Approve moves a Pending UpdateRequest to Approved. The controller then applies
the update to the target workload and marks the request Completed or Failed.

Only Pending requests can be approved.`,
		Args: cobra.ExactArgs(1),
		RunE: runApprove,
	}
	cmd.Flags().StringVar(&approveActor, "actor", defaultActor(), "Name recorded as the approver")
	return cmd
}

func newRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <name>",
		Short: "Reject a pending UpdateRequest",
		Long: `Reject moves a Pending UpdateRequest to Rejected. Rejected requests are final;
the workload keeps its current version.`,
		Args: cobra.ExactArgs(1),
		RunE: runReject,
	}
	cmd.Flags().StringVar(&rejectActor, "actor", defaultActor(), "Name recorded as the rejecter")
	cmd.Flags().StringVar(&rejectReason, "reason", "", "Reason recorded on the UpdateRequest")
	return cmd
}

func newLifecycle() (*updaterequest.Lifecycle, error) {
	c, err := newClient()
	if err != nil {
		return nil, err
	}
	return updaterequest.NewLifecycle(c, workload.DefaultRegistry()), nil
}

func runApprove(cmd *cobra.Command, args []string) error {
	lifecycle, err := newLifecycle()
	if err != nil {
		return err
	}

	key := types.NamespacedName{Namespace: namespace, Name: args[0]}
	ur, err := lifecycle.Approve(cmd.Context(), key, approveActor)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "updaterequest %s/%s approved by %s (%s -> %s)\n",
		ur.Namespace, ur.Name, ur.Status.ApprovedBy, ur.Spec.CurrentImage, ur.Spec.NewImage)
	return nil
}

func runReject(cmd *cobra.Command, args []string) error {
	lifecycle, err := newLifecycle()
	if err != nil {
		return err
	}

	key := types.NamespacedName{Namespace: namespace, Name: args[0]}
	ur, err := lifecycle.Reject(cmd.Context(), key, rejectActor, rejectReason)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "updaterequest %s/%s rejected by %s\n", ur.Namespace, ur.Name, ur.Status.RejectedBy)
	return nil
}
