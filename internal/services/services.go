// package services defines the outbound integrations: Spotify search and Walrus blob storage.
package services

import (
	"context"
	"io"

	"github.com/desertthunder/amply/internal/models"
)

// TrackSearcher finds tracks in a music catalog.
type TrackSearcher interface {
	// Search returns up to limit tracks matching query.
	Search(ctx context.Context, query string, limit int) ([]models.SpotifyTrack, error)

	// Track retrieves a single track by catalog ID.
	Track(ctx context.Context, id string) (*models.SpotifyTrack, error)

	// Name returns the name of the catalog (e.g., "Spotify")
	Name() string
}

// BlobStore writes and reads opaque blobs.
type BlobStore interface {
	// Store uploads body and returns the raw store response plus the parsed blob info when available.
	Store(ctx context.Context, body io.Reader, opts StoreOptions) (*StoreResult, error)

	// Read opens the content of a stored blob. The caller closes it.
	Read(ctx context.Context, blobID string) (*Blob, error)
}
