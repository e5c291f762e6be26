package client

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
)

// StoreErrorReason classifies a failed resource store operation.
type StoreErrorReason string

const (
	ReasonNotFound      StoreErrorReason = "NotFound"
	ReasonConflict      StoreErrorReason = "Conflict"
	ReasonAlreadyExists StoreErrorReason = "AlreadyExists"
	ReasonOther         StoreErrorReason = "Other"
)

// ResourceStoreError is a failed get, list, create, patch or delete against
// the API server.
type ResourceStoreError struct {
	Op     string
	Kind   string
	Key    types.NamespacedName
	Reason StoreErrorReason
	Err    error
}

func (e *ResourceStoreError) Error() string {
	return fmt.Sprintf("failed to %s %s %s: %v", e.Op, e.Kind, e.Key, e.Err)
}

func (e *ResourceStoreError) Unwrap() error {
	return e.Err
}

// WrapStoreError wraps err into a *ResourceStoreError. It returns nil for a
// nil error.
func WrapStoreError(op, kind string, key types.NamespacedName, err error) error {
	if err == nil {
		return nil
	}
	var existing *ResourceStoreError
	if errors.As(err, &existing) {
		return err
	}

	reason := ReasonOther
	switch {
	case apierrors.IsNotFound(err):
		reason = ReasonNotFound
	case apierrors.IsConflict(err):
		reason = ReasonConflict
	case apierrors.IsAlreadyExists(err):
		reason = ReasonAlreadyExists
	}

	return &ResourceStoreError{Op: op, Kind: kind, Key: key, Reason: reason, Err: err}
}

// IsNotFound reports whether err is a not-found store error.
func IsNotFound(err error) bool {
	return hasReason(err, ReasonNotFound) || apierrors.IsNotFound(err)
}

// IsConflict reports whether err is an optimistic concurrency conflict.
func IsConflict(err error) bool {
	return hasReason(err, ReasonConflict) || apierrors.IsConflict(err)
}

// IsAlreadyExists reports whether err is a create of an existing object.
func IsAlreadyExists(err error) bool {
	return hasReason(err, ReasonAlreadyExists) || apierrors.IsAlreadyExists(err)
}

// IsRetryable reports whether err is a store failure worth retrying: any
// ResourceStoreError except not-found, such as a conflict, a timeout or an
// unavailable API server.
func IsRetryable(err error) bool {
	var storeErr *ResourceStoreError
	return errors.As(err, &storeErr) && storeErr.Reason != ReasonNotFound
}

func hasReason(err error, reason StoreErrorReason) bool {
	var storeErr *ResourceStoreError
	return errors.As(err, &storeErr) && storeErr.Reason == reason
}
