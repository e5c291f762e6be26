// Package policy decides whether a workload may move from one version to
// another.
//
// A ResourcePolicy is parsed from the headwind.sh/* annotations on a
// workload. The Engine evaluates it against a current and a candidate
// version and never touches the cluster: it is a pure function of its
// inputs, which keeps every controller's decision reproducible in tests.
//
// Tiered policies (patch, minor, major) compare (major, minor, patch)
// triples. A version is split on '.' and the leading digits of each segment
// are read; a single leading 'v' is accepted, so "v1.4.2" and "1.4.2" are
// equivalent. When a version cannot be parsed the engine answers false, or
// returns an UnparseableVersion PolicyError when constructed with
// WithStrictVersions.
package policy
