// Package polling discovers the images run by workloads that opt into
// polling and checks their registries for new tags.
//
// Each cycle rediscovers the tracked images, so newly annotated workloads
// are picked up without a restart. The newest tag of an image is chosen by
// version ranking, not by registry order. A Cache suppresses repeated
// signals: an event is emitted only when the newest tag differs from the
// one seen in the previous cycle.
//
// Events are handed to a Handler, normally the reconciler.Router.
package polling
