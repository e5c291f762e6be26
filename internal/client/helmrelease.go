package client

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var (
	// HelmReleaseGVK is the Flux HelmRelease kind watched by headwind.
	HelmReleaseGVK = schema.GroupVersionKind{Group: "helm.toolkit.fluxcd.io", Version: "v2", Kind: "HelmRelease"}

	// HelmReleaseListGVK is the list kind of HelmReleaseGVK.
	HelmReleaseListGVK = HelmReleaseGVK.GroupVersion().WithKind("HelmReleaseList")
)

// AddHelmReleaseToScheme registers HelmRelease as an unstructured kind so it
// can be read and patched without importing the Flux API module.
func AddHelmReleaseToScheme(scheme *runtime.Scheme) {
	scheme.AddKnownTypeWithName(HelmReleaseGVK, &unstructured.Unstructured{})
	scheme.AddKnownTypeWithName(HelmReleaseListGVK, &unstructured.UnstructuredList{})
}

// NewHelmRelease returns an empty unstructured HelmRelease.
func NewHelmRelease() *unstructured.Unstructured {
	u := &unstructured.Unstructured{}
	u.SetGroupVersionKind(HelmReleaseGVK)
	return u
}

// NewHelmReleaseList returns an empty unstructured HelmRelease list.
func NewHelmReleaseList() *unstructured.UnstructuredList {
	u := &unstructured.UnstructuredList{}
	u.SetGroupVersionKind(HelmReleaseListGVK)
	return u
}
