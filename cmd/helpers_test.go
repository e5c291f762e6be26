package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	hwclient "github.com/headwind-sh/headwind/internal/client"
	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

// useFakeClient points newClient at a fake client holding objs for the
// duration of the test.
func useFakeClient(t *testing.T, objs ...client.Object) client.Client {
	t.Helper()
	c := fake.NewClientBuilder().
		WithScheme(hwclient.NewScheme()).
		WithStatusSubresource(&headwindv1alpha1.UpdateRequest{}).
		WithObjects(objs...).
		Build()

	original := newClient
	newClient = func() (client.Client, error) { return c, nil }
	t.Cleanup(func() { newClient = original })
	return c
}

// setNamespace sets the --namespace value for the duration of the test.
func setNamespace(t *testing.T, ns string) {
	t.Helper()
	original := namespace
	namespace = ns
	t.Cleanup(func() { namespace = original })
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&buf)
	c.SetContext(context.Background())
	return c, &buf
}

func updateRequest(ns, name string, phase headwindv1alpha1.UpdatePhase) *headwindv1alpha1.UpdateRequest {
	return &headwindv1alpha1.UpdateRequest{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: ns},
		Spec: headwindv1alpha1.UpdateRequestSpec{
			TargetRef: headwindv1alpha1.TargetRef{
				APIVersion: "apps/v1",
				Kind:       "Deployment",
				Name:       "web",
				Namespace:  ns,
			},
			UpdateType:      headwindv1alpha1.UpdateTypeImage,
			ContainerName:   "app",
			CurrentImage:    "nginx:1.25.0",
			NewImage:        "nginx:1.26.0",
			RequireApproval: true,
		},
		Status: headwindv1alpha1.UpdateRequestStatus{Phase: phase},
	}
}
