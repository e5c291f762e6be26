// Package mock holds test doubles shared across packages.
package mock
