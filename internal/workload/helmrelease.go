package workload

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	hwclient "github.com/headwind-sh/headwind/internal/client"
	"github.com/headwind-sh/headwind/internal/policy"
	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

type helmReleaseAdapter struct {
	requeue time.Duration
}

// NewHelmReleaseAdapter returns the adapter for Flux HelmReleases.
func NewHelmReleaseAdapter(opts ...AdapterOption) Adapter {
	o := buildOptions(DefaultHelmReleaseRequeue, opts)
	return &helmReleaseAdapter{requeue: o.requeue}
}

func (a *helmReleaseAdapter) Kind() Kind { return KindHelmRelease }

func (a *helmReleaseAdapter) GroupVersionKind() schema.GroupVersionKind {
	return hwclient.HelmReleaseGVK
}

func (a *helmReleaseAdapter) UpdateType() headwindv1alpha1.UpdateType {
	return headwindv1alpha1.UpdateTypeHelmChart
}

func (a *helmReleaseAdapter) NewObject() client.Object { return hwclient.NewHelmRelease() }

func (a *helmReleaseAdapter) DefaultRequeue() time.Duration { return a.requeue }

// Resolve compares the requested chart version with the last deployed one.
// A release that has never been deployed has no drift.
func (a *helmReleaseAdapter) Resolve(obj client.Object, _ policy.ResourcePolicy, _ []Candidate) ([]Drift, error) {
	u, ok := obj.(*unstructured.Unstructured)
	if !ok {
		return nil, fmt.Errorf("expected unstructured HelmRelease, got %T", obj)
	}

	requested, _, err := unstructured.NestedString(u.Object, "spec", "chart", "spec", "version")
	if err != nil {
		return nil, fmt.Errorf("invalid spec.chart.spec.version: %w", err)
	}
	chart, _, _ := unstructured.NestedString(u.Object, "spec", "chart", "spec", "chart")

	deployed := DeployedChartVersion(u)
	if requested == "" || deployed == "" || requested == deployed {
		return nil, nil
	}

	return []Drift{{
		Repository:   chart,
		Current:      deployed,
		Candidate:    requested,
		CurrentRef:   deployed,
		CandidateRef: requested,
	}}, nil
}

// DeployedChartVersion returns the chart version of the last successful
// release: status.lastAppliedRevision, or the newest "deployed" entry of
// status.history.
func DeployedChartVersion(u *unstructured.Unstructured) string {
	if v, _, _ := unstructured.NestedString(u.Object, "status", "lastAppliedRevision"); v != "" {
		return v
	}

	history, _, _ := unstructured.NestedSlice(u.Object, "status", "history")
	for _, entry := range history {
		snapshot, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		status, _, _ := unstructured.NestedString(snapshot, "status")
		version, _, _ := unstructured.NestedString(snapshot, "chartVersion")
		if status == "deployed" && version != "" {
			return version
		}
	}
	return ""
}

func (a *helmReleaseAdapter) Apply(ctx context.Context, c client.Client, target types.NamespacedName, change Change) error {
	obj := hwclient.NewHelmRelease()
	if err := c.Get(ctx, target, obj); err != nil {
		return hwclient.WrapStoreError("get", string(KindHelmRelease), target, err)
	}

	patch := map[string]interface{}{
		"metadata": map[string]interface{}{
			"annotations": map[string]string{
				policy.LastUpdateAnnotation: FormatLastUpdate(change.Time, change.ApprovedBy),
			},
		},
		"spec": map[string]interface{}{
			"chart": map[string]interface{}{
				"spec": map[string]interface{}{
					"version": change.NewRef,
				},
			},
		},
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}

	if err := c.Patch(ctx, obj, client.RawPatch(types.MergePatchType, data), client.FieldOwner(FieldManager)); err != nil {
		return hwclient.WrapStoreError("patch", string(KindHelmRelease), target, err)
	}
	return nil
}
