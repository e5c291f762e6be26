package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	hwclient "github.com/headwind-sh/headwind/internal/client"
	"github.com/headwind-sh/headwind/internal/updaterequest"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeNotFound indicates the named UpdateRequest does not exist.
	ExitCodeNotFound = 2
	// ExitCodeConflict indicates the UpdateRequest is not in a phase that
	// allows the requested transition.
	ExitCodeConflict = 3
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "headwind",
	Short: "Gated version updates for Kubernetes workloads",
	Long: `headwind watches Deployments, StatefulSets, DaemonSets and Flux HelmReleases
for newer image tags and chart versions. Workloads opt in with annotations that
choose an update policy. Updates are either applied directly or proposed as
UpdateRequests that wait for approval.`,
	SilenceUsage: true,
}

// namespace is shared by the commands that work on UpdateRequests.
var namespace string

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a code derived from the
// error.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "headwind version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps errors to exit codes for scripting.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	if hwclient.IsNotFound(err) {
		return ExitCodeNotFound
	}

	var conflict *updaterequest.StateConflictError
	if errors.As(err, &conflict) {
		return ExitCodeConflict
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "default", "Namespace of the UpdateRequests")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newApproveCmd())
	rootCmd.AddCommand(newRejectCmd())
}
