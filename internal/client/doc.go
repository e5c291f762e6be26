// Package client wraps the controller-runtime client with the scheme,
// typed UpdateRequest helpers and Event creation used across headwind.
//
// Store failures are reported as *ResourceStoreError, which separates
// not-found and conflict outcomes from other failures:
//
//	ur, err := c.GetUpdateRequest(ctx, name, namespace)
//	if client.IsNotFound(err) {
//		// nothing to do
//	}
package client
