// Walrus publisher/aggregator client implementing [BlobStore]
//
// HTTP API reference: https://docs.wal.app/usage/web-api.html
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/amply/internal/shared"
)

const (
	DefaultWalrusPublisher  = "https://publisher.walrus-testnet.walrus.space"
	DefaultWalrusAggregator = "https://aggregator.walrus-testnet.walrus.space"
)

// APIResponse represents a raw upstream response with status and body, relayed as-is by the proxy.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StoreOptions are forwarded as publisher query parameters.
type StoreOptions struct {
	Deletable bool
	Epochs    int
}

// BlobInfo is the useful subset of a publisher store response.
type BlobInfo struct {
	BlobID           string `json:"blob_id"`
	ObjectID         string `json:"object_id,omitempty"`
	Size             int64  `json:"size,omitempty"`
	EndEpoch         int64  `json:"end_epoch,omitempty"`
	Deletable        bool   `json:"deletable"`
	AlreadyCertified bool   `json:"already_certified"`
}

// StoreResult pairs the relayed publisher response with the parsed blob info (nil on failures).
type StoreResult struct {
	Response *APIResponse
	Blob     *BlobInfo
}

// Blob is an open aggregator read.
type Blob struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

type walrusStoreResponse struct {
	NewlyCreated *struct {
		BlobObject struct {
			ID        string `json:"id"`
			BlobID    string `json:"blobId"`
			Size      int64  `json:"size"`
			Deletable bool   `json:"deletable"`
			Storage   struct {
				EndEpoch int64 `json:"endEpoch"`
			} `json:"storage"`
		} `json:"blobObject"`
	} `json:"newlyCreated"`
	AlreadyCertified *struct {
		BlobID   string `json:"blobId"`
		EndEpoch int64  `json:"endEpoch"`
		Object   string `json:"object"`
	} `json:"alreadyCertified"`
}

// ParseBlobInfo extracts blob info from newlyCreated.blobObject or alreadyCertified.
func ParseBlobInfo(body []byte) (*BlobInfo, error) {
	var resp walrusStoreResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode walrus response: %w", err)
	}

	switch {
	case resp.NewlyCreated != nil:
		obj := resp.NewlyCreated.BlobObject
		return &BlobInfo{
			BlobID:    obj.BlobID,
			ObjectID:  obj.ID,
			Size:      obj.Size,
			EndEpoch:  obj.Storage.EndEpoch,
			Deletable: obj.Deletable,
		}, nil
	case resp.AlreadyCertified != nil:
		return &BlobInfo{
			BlobID:           resp.AlreadyCertified.BlobID,
			ObjectID:         resp.AlreadyCertified.Object,
			EndEpoch:         resp.AlreadyCertified.EndEpoch,
			AlreadyCertified: true,
		}, nil
	default:
		return nil, fmt.Errorf("%w: walrus response has neither newlyCreated nor alreadyCertified", shared.ErrAPIRequest)
	}
}

// WalrusService talks to a Walrus publisher for writes and an aggregator for reads.
type WalrusService struct {
	publisherURL  string
	aggregatorURL string
	epochs        int
	httpClient    *http.Client
}

// NewWalrusService creates a Walrus client, falling back to the testnet endpoints.
func NewWalrusService(cfg shared.WalrusConfig, client *http.Client) *WalrusService {
	publisher := strings.TrimRight(cfg.PublisherURL, "/")
	if publisher == "" {
		publisher = DefaultWalrusPublisher
	}
	aggregator := strings.TrimRight(cfg.AggregatorURL, "/")
	if aggregator == "" {
		aggregator = DefaultWalrusAggregator
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &WalrusService{
		publisherURL:  publisher,
		aggregatorURL: aggregator,
		epochs:        cfg.Epochs,
		httpClient:    client,
	}
}

// PublisherURL returns the configured publisher base URL.
func (w *WalrusService) PublisherURL() string { return w.publisherURL }

// Store performs PUT {publisher}/v1/blobs with the raw body.
//
// A non-2xx publisher answer is not an error: it comes back in the result for the caller to relay.
// Transport failures wrap [shared.ErrServiceUnavailable].
func (w *WalrusService) Store(ctx context.Context, body io.Reader, opts StoreOptions) (*StoreResult, error) {
	params := url.Values{}
	params.Set("deletable", strconv.FormatBool(opts.Deletable))
	epochs := opts.Epochs
	if epochs <= 0 {
		epochs = w.epochs
	}
	if epochs > 0 {
		params.Set("epochs", strconv.Itoa(epochs))
	}

	fullURL := w.publisherURL + "/v1/blobs?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	apiResp, err := w.do(req)
	if err != nil {
		return nil, err
	}

	result := &StoreResult{Response: apiResp}
	if apiResp.OK() {
		info, err := ParseBlobInfo(apiResp.Body)
		if err != nil {
			return result, err
		}
		result.Blob = info
	}
	return result, nil
}

// Read performs GET {aggregator}/v1/blobs/{id}.
func (w *WalrusService) Read(ctx context.Context, blobID string) (*Blob, error) {
	if strings.TrimSpace(blobID) == "" {
		return nil, fmt.Errorf("%w: blob id", shared.ErrMissingArgument)
	}

	fullURL := w.aggregatorURL + "/v1/blobs/" + url.PathEscape(blobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: walrus aggregator: %v", shared.ErrServiceUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", shared.ErrBlobNotFound, blobID)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: walrus aggregator status %d", shared.ErrUpstream, resp.StatusCode)
	}

	return &Blob{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}

func (w *WalrusService) do(req *http.Request) (*APIResponse, error) {
	resp, err := w.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: walrus publisher: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}
