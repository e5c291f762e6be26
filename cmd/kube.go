package cmd

import (
	"fmt"
	"os"

	"sigs.k8s.io/controller-runtime/pkg/client"

	hwclient "github.com/headwind-sh/headwind/internal/client"
)

// newClient connects to the cluster of the current kubeconfig context.
// Tests replace it with a fake client.
var newClient = func() (client.Client, error) {
	restConfig, err := hwclient.GetRestConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load Kubernetes configuration: %w", err)
	}
	k8sClient, err := hwclient.NewKubernetesClient(restConfig)
	if err != nil {
		return nil, err
	}
	return k8sClient, nil
}

// defaultActor is recorded as the approver or rejecter when --actor is
// not set.
func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "headwind-cli"
}
