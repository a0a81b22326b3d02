// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/shared"
)

// MockSearcher is a test double for [services.TrackSearcher]
type MockSearcher struct {
	Tracks []models.SpotifyTrack
	Err    error

	mu      sync.Mutex
	Queries []string
}

func (m *MockSearcher) Search(ctx context.Context, query string, limit int) ([]models.SpotifyTrack, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if limit > 0 && len(m.Tracks) > limit {
		return m.Tracks[:limit], nil
	}
	return m.Tracks, nil
}

func (m *MockSearcher) Track(ctx context.Context, id string) (*models.SpotifyTrack, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, t := range m.Tracks {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
}

func (m *MockSearcher) Name() string { return "mock" }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
