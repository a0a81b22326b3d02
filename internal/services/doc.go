// Package services implements the outbound integrations of the Amply backend.
//
// # Spotify
//
// [SpotifyService] implements [TrackSearcher] using the OAuth2 client-credentials flow. The
// [clientcredentials.Config] token source caches the app token and fetches a new one when it
// expires, so no user login is involved. Calls are throttled with a [rate.Limiter].
//
// # Walrus
//
// [WalrusService] implements [BlobStore]. Writes go to a publisher (PUT /v1/blobs) and reads to an
// aggregator (GET /v1/blobs/{id}). The raw publisher response is kept in an [APIResponse] so the
// HTTP proxy can relay it unchanged.
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrMissingCredentials] : Spotify client id/secret not configured
//   - [shared.ErrInvalidCredentials] : token request or API rejected the app credentials
//   - [shared.ErrAPIRequest] : upstream answered with an unexpected status
//   - [shared.ErrServiceUnavailable] : upstream unreachable
//   - [shared.ErrTrackNotFound], [shared.ErrBlobNotFound] : missing catalog entries
package services
