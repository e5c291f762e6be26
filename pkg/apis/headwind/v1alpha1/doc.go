// Package v1alpha1 contains API Schema definitions for the headwind v1alpha1 API group.
//
// # API Group: headwind.sh/v1alpha1
//
// ## UpdateRequest
//
// An UpdateRequest records a proposed version change for a workload that
// requires human sign-off. Controllers create it in the Pending phase; an
// operator moves it to Approved or Rejected, and the UpdateRequest
// controller applies approved changes and records the outcome as Completed
// or Failed.
//
// Example:
//
//	apiVersion: headwind.sh/v1alpha1
//	kind: UpdateRequest
//	metadata:
//	  name: web-1-5-2-3f9c2a1b
//	  namespace: default
//	spec:
//	  targetRef:
//	    apiVersion: apps/v1
//	    kind: Deployment
//	    name: web
//	    namespace: default
//	  updateType: Image
//	  containerName: app
//	  currentImage: app:1.4.0
//	  newImage: app:1.5.2
//	  policy: minor
//	  requireApproval: true
//	status:
//	  phase: Pending
//
// +kubebuilder:object:generate=true
// +groupName=headwind.sh
package v1alpha1
