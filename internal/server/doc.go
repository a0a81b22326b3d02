// Package server is the amply HTTP API: REST routes for parties, the Spotify search and Walrus
// proxies, and the per-party WebSocket.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation registers method patterns ("GET /api/parties/{id}") on an
// [http.ServeMux], so wrong methods get a 405 and handlers read path values with [http.Request.PathValue].
//
// # Authentication
//
// Party and profile routes sit behind [RequireAuth], which accepts a Supabase access token as a
// bearer header or, for browsers opening a WebSocket, an access_token query parameter. Without a
// configured JWT secret those routes answer 503.
//
// # Errors
//
// Every failure is written as an [APIError] envelope. Sentinel errors from the shared package map
// onto status codes; anything unrecognised becomes a 500 with a generic message.
//
// # Realtime
//
// GET /api/parties/{id}/ws sends a state snapshot on connect and then relays every hub event for the
// party. Clients send ping, sync, chat, control and signal frames; see [party.ClientMessage].
// A client that falls behind loses events and receives a fresh snapshot instead.
package server
