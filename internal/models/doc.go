// Package models defines domain entities and persistence interfaces for the Amply listening-party service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing external service data
//   - [SpotifyTrack] : Track metadata returned by Spotify search
//
// 2. Persistent Entities: Database-backed rows with their state rules
//   - [User] : Profile mirrored from a Supabase auth user
//   - [ListeningParty] : A party with its scheduled/live/ended lifecycle
//   - [PartyParticipant] : Membership of a user in a party with a role
//   - [PartyMessage] : Chat line scoped to a party
//   - [PlaybackState] : Per-party transport (track, position, playing, version)
//   - [PartyTrack] : Queued, playing or played track in a party queue
//   - [WebRTCSignal] : Offer/answer/ice-candidate envelope between two participants
//
// All persistent entities implement the [Model] interface. The [Repository] interface
// defines standard CRUD operations for the entities that support them.
package models
