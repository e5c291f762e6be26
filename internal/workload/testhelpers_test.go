package workload

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	hwclient "github.com/headwind-sh/headwind/internal/client"
)

func newDeployment(name string, annotations map[string]string, containers ...corev1.Container) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default", Annotations: annotations},
		Spec: appsv1.DeploymentSpec{
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{Containers: containers},
			},
		},
	}
}

func newHelmRelease(name, requested, deployed string) *unstructured.Unstructured {
	u := hwclient.NewHelmRelease()
	u.SetName(name)
	u.SetNamespace("default")
	_ = unstructured.SetNestedField(u.Object, "podinfo", "spec", "chart", "spec", "chart")
	if requested != "" {
		_ = unstructured.SetNestedField(u.Object, requested, "spec", "chart", "spec", "version")
	}
	if deployed != "" {
		_ = unstructured.SetNestedField(u.Object, deployed, "status", "lastAppliedRevision")
	}
	return u
}

func newFakeClient(objs ...client.Object) client.Client {
	return fake.NewClientBuilder().WithScheme(hwclient.NewScheme()).WithObjects(objs...).Build()
}
