package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// UpdateType distinguishes container image updates from chart updates.
// +kubebuilder:validation:Enum=Image;HelmChart
type UpdateType string

const (
	UpdateTypeImage     UpdateType = "Image"
	UpdateTypeHelmChart UpdateType = "HelmChart"
)

// UpdatePhase is the lifecycle phase of an UpdateRequest.
// +kubebuilder:validation:Enum=Pending;Approved;Rejected;Completed;Failed
type UpdatePhase string

const (
	PhasePending   UpdatePhase = "Pending"
	PhaseApproved  UpdatePhase = "Approved"
	PhaseRejected  UpdatePhase = "Rejected"
	PhaseCompleted UpdatePhase = "Completed"
	PhaseFailed    UpdatePhase = "Failed"
)

// IsTerminal reports whether no further transition is allowed out of p.
func (p UpdatePhase) IsTerminal() bool {
	return p == PhaseRejected || p == PhaseCompleted || p == PhaseFailed
}

// TargetRef identifies the workload an update applies to.
type TargetRef struct {
	// +kubebuilder:validation:Required
	APIVersion string `json:"apiVersion" yaml:"apiVersion"`

	// +kubebuilder:validation:Required
	// +kubebuilder:validation:Enum=Deployment;StatefulSet;DaemonSet;HelmRelease
	Kind string `json:"kind" yaml:"kind"`

	// +kubebuilder:validation:Required
	Name string `json:"name" yaml:"name"`

	// +kubebuilder:validation:Required
	Namespace string `json:"namespace" yaml:"namespace"`
}

// UpdateRequestSpec defines the desired state of UpdateRequest
type UpdateRequestSpec struct {
	// TargetRef is the workload to update.
	// +kubebuilder:validation:Required
	TargetRef TargetRef `json:"targetRef" yaml:"targetRef"`

	// UpdateType is Image for pod template images and HelmChart for chart versions.
	// +kubebuilder:default=Image
	UpdateType UpdateType `json:"updateType" yaml:"updateType"`

	// ContainerName is the container whose image changes. Empty for chart updates.
	ContainerName string `json:"containerName,omitempty" yaml:"containerName,omitempty"`

	// CurrentImage is the image reference (or chart version) at proposal time.
	CurrentImage string `json:"currentImage" yaml:"currentImage"`

	// NewImage is the proposed image reference (or chart version).
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	NewImage string `json:"newImage" yaml:"newImage"`

	// Policy is the update policy in effect when the request was created.
	Policy string `json:"policy,omitempty" yaml:"policy,omitempty"`

	// Pattern is the glob pattern of a glob policy.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// Reason is a human readable explanation of why the update was proposed.
	// +kubebuilder:validation:MaxLength=1000
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// RequireApproval is false for requests that may be applied without sign-off.
	// +kubebuilder:default=true
	RequireApproval bool `json:"requireApproval" yaml:"requireApproval"`

	// ExpiresAt is the deadline after which a Pending request fails.
	ExpiresAt *metav1.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`

	// AutoRollback mirrors the workload's auto-rollback annotation.
	AutoRollback bool `json:"autoRollback,omitempty" yaml:"autoRollback,omitempty"`

	// RollbackTimeoutSeconds mirrors the workload's rollback-timeout annotation.
	RollbackTimeoutSeconds int64 `json:"rollbackTimeoutSeconds,omitempty" yaml:"rollbackTimeoutSeconds,omitempty"`

	// HealthCheckRetries mirrors the workload's health-check-retries annotation.
	HealthCheckRetries int32 `json:"healthCheckRetries,omitempty" yaml:"healthCheckRetries,omitempty"`
}

// UpdateRequestStatus defines the observed state of UpdateRequest
type UpdateRequestStatus struct {
	// Phase is the lifecycle phase. Rejected, Completed and Failed are final.
	Phase UpdatePhase `json:"phase,omitempty" yaml:"phase,omitempty"`

	// ApprovedBy identifies who approved the request.
	ApprovedBy string `json:"approvedBy,omitempty" yaml:"approvedBy,omitempty"`

	// ApprovedAt is when the request was approved.
	ApprovedAt *metav1.Time `json:"approvedAt,omitempty" yaml:"approvedAt,omitempty"`

	// RejectedBy identifies who rejected the request.
	RejectedBy string `json:"rejectedBy,omitempty" yaml:"rejectedBy,omitempty"`

	// Message explains the current phase, for example a failure reason.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// LastUpdated is when the phase last changed.
	LastUpdated *metav1.Time `json:"lastUpdated,omitempty" yaml:"lastUpdated,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=ur
// +kubebuilder:printcolumn:name="Kind",type="string",JSONPath=".spec.targetRef.kind"
// +kubebuilder:printcolumn:name="Target",type="string",JSONPath=".spec.targetRef.name"
// +kubebuilder:printcolumn:name="Current",type="string",JSONPath=".spec.currentImage"
// +kubebuilder:printcolumn:name="New",type="string",JSONPath=".spec.newImage"
// +kubebuilder:printcolumn:name="Phase",type="string",JSONPath=".status.phase"
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp"

// UpdateRequest is the Schema for the updaterequests API
type UpdateRequest struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   UpdateRequestSpec   `json:"spec,omitempty"`
	Status UpdateRequestStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// UpdateRequestList contains a list of UpdateRequest
type UpdateRequestList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []UpdateRequest `json:"items"`
}

func init() {
	SchemeBuilder.Register(&UpdateRequest{}, &UpdateRequestList{})
}
