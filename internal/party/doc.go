// Package party is the listening-party engine.
//
// The [Coordinator] enforces the party rules (host-only transitions and transport, queue order,
// host handoff, signal routing) and persists through the repositories. Every mutation is published
// as an [Event] on the [Hub], which fans events out to the realtime subscriptions of a party.
// The [Janitor] runs in the background to advance finished tracks, end abandoned parties and
// prune undelivered signals.
//
// Mutations on one party are serialized with a per-party lock so the playback version and the
// queue positions move forward one step at a time.
package party
