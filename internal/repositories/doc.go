// Package repositories implements SQL persistence for all domain entities.
//
// Queries are written once with ? placeholders and run against sqlite3 or postgres through [shared.Database].
//
// Key Implementations:
//   - [UserRepository] : Profiles keyed by the Supabase auth uid, soft deleted
//   - [PartyRepository] : Listening parties with invite codes and status queries
//   - [ParticipantRepository] : Membership rows, rejoin clears left_at
//   - [MessageRepository] : Chat history paged by time
//   - [PlaybackRepository] : One transport row per party, upserted
//   - [TrackRepository] : Party queue with per-party positions assigned on insert
//   - [SignalRepository] : Pending WebRTC signals, drained by the recipient
//
// Sequence numbers provide stable, human-readable ordering (e.g., party #15) independent of UUIDs.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
