// Spotify API implementation of [TrackSearcher]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track object.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int64           `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	Popularity   int             `json:"popularity"`
	PreviewURL   *string         `json:"preview_url"`
	ExternalURLs externalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

// SpotifySearchResponse is the envelope of GET /search?type=track.
type SpotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
		Total int            `json:"total"`
	} `json:"tracks"`
}

// ToModel maps the API shape onto [models.SpotifyTrack].
func (t SpotifyTrack) ToModel() models.SpotifyTrack {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	track := models.SpotifyTrack{
		ID:          t.ID,
		Name:        t.Name,
		Artists:     artists,
		Album:       t.Album.Name,
		DurationMS:  t.DurationMS,
		URI:         t.URI,
		ExternalURL: t.ExternalURLs.Spotify,
		Explicit:    t.Explicit,
		Popularity:  t.Popularity,
	}
	if len(t.Album.Images) > 0 {
		track.AlbumImage = t.Album.Images[0].URL
	}
	if t.PreviewURL != nil {
		track.PreviewURL = *t.PreviewURL
	}
	return track
}

// ClampSearchLimit applies the default (10) and the 1..50 bounds Spotify accepts.
func ClampSearchLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return min(limit, MaxSearchLimit)
}

// SpotifyService implements [TrackSearcher] for Spotify API interactions.
// Uses the [clientcredentials] flow; the token source caches and refreshes the app token.
type SpotifyService struct {
	config     *clientcredentials.Config
	httpClient *http.Client
	baseURL    string
	market     string
	limiter    *rate.Limiter
}

// SpotifyOption customizes a [SpotifyService].
type SpotifyOption func(*spotifyOptions)

type spotifyOptions struct {
	baseURL   string
	tokenURL  string
	transport *http.Client
}

// WithSpotifyEndpoints points the service at alternate API and token URLs.
func WithSpotifyEndpoints(baseURL, tokenURL string) SpotifyOption {
	return func(o *spotifyOptions) {
		o.baseURL = strings.TrimRight(baseURL, "/")
		o.tokenURL = tokenURL
	}
}

// WithSpotifyHTTPClient sets the client used for both token and API calls.
func WithSpotifyHTTPClient(c *http.Client) SpotifyOption {
	return func(o *spotifyOptions) { o.transport = c }
}

// NewSpotifyService creates a new Spotify service with the given app credentials.
func NewSpotifyService(cfg shared.SpotifyConfig, opts ...SpotifyOption) (*SpotifyService, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret", shared.ErrMissingCredentials)
	}

	o := spotifyOptions{baseURL: spotifyBaseURL, tokenURL: spotifyTokenURL}
	for _, opt := range opts {
		opt(&o)
	}

	config := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     o.tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	ctx := context.Background()
	if o.transport != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.transport)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &SpotifyService{
		config:     config,
		httpClient: config.Client(ctx),
		baseURL:    o.baseURL,
		market:     cfg.Market,
		limiter:    rate.NewLimiter(limit, max(1, int(cfg.RateLimit))),
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated GET against the Spotify API and decodes the JSON result.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, query url.Values, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}

	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: spotify token request failed: %v", shared.ErrInvalidCredentials, retrieveErr)
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify rejected the app token", shared.ErrInvalidCredentials)
	case resp.StatusCode == http.StatusNotFound:
		return shared.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: spotify rate limited, retry after %ss", shared.ErrAPIRequest, resp.Header.Get("Retry-After"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Search looks up tracks by free text, returning at most limit results.
func (s *SpotifyService) Search(ctx context.Context, query string, limit int) ([]models.SpotifyTrack, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}
	limit = ClampSearchLimit(limit)

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))
	if s.market != "" {
		params.Set("market", s.market)
	}

	var response SpotifySearchResponse
	if err := s.doRequest(ctx, "/search", params, &response); err != nil {
		return nil, err
	}

	items := response.Tracks.Items
	if len(items) > limit {
		items = items[:limit]
	}

	tracks := make([]models.SpotifyTrack, 0, len(items))
	for _, item := range items {
		tracks = append(tracks, item.ToModel())
	}
	return tracks, nil
}

// Track retrieves a single track by ID.
func (s *SpotifyService) Track(ctx context.Context, trackID string) (*models.SpotifyTrack, error) {
	if strings.TrimSpace(trackID) == "" {
		return nil, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	var track SpotifyTrack
	err := s.doRequest(ctx, "/tracks/"+url.PathEscape(trackID), nil, &track)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, trackID)
	}
	if err != nil {
		return nil, err
	}

	mapped := track.ToModel()
	return &mapped, nil
}
