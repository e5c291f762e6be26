// Package workload adapts each watched resource kind to one small capability
// set: resolve the versions an object runs and is being offered, apply a
// version change, and report how often the kind is re-evaluated.
//
// Deployments, StatefulSets and DaemonSets share a pod template adapter and
// are patched with a strategic merge patch that touches only the matched
// container. HelmReleases are handled as unstructured objects; their drift is
// the difference between the requested chart version and the last deployed
// revision.
package workload
