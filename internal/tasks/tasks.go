package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/amply/internal/services"
	"github.com/desertthunder/amply/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultProgressInterval is the minimum gap between byte progress updates.
const DefaultProgressInterval = 100 * time.Millisecond

// UploadResult describes one stored file.
type UploadResult struct {
	Path     string                // Local file
	Size     int64                 // Bytes sent
	Blob     *services.BlobInfo    // Parsed publisher answer (nil when unparseable)
	Response *services.APIResponse // Raw publisher answer
	Elapsed  time.Duration
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// countingReader counts bytes as the HTTP client pulls them and reports at most once per limiter tick.
type countingReader struct {
	r       io.Reader
	n       int64
	limiter *rate.Limiter
	report  func(n int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.n += int64(n)
		if c.limiter.Allow() {
			c.report(c.n)
		}
	}
	return n, err
}

func progressLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(DefaultProgressInterval), 1)
}

// UploadBlob streams the file at path to store, reporting bytes sent on progress.
//
// A publisher answer outside 2xx is returned as an error wrapping [shared.ErrUpstream] together with the
// result, so callers can still show the raw response.
func UploadBlob(ctx context.Context, progress chan<- ProgressUpdate, store services.BlobStore, path string, opts services.StoreOptions) (*UploadResult, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: blob store not initialized", shared.ErrServiceUnavailable)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", shared.ErrInvalidArgument, path)
	}
	size := info.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: %s is empty", shared.ErrInvalidInput, path)
	}

	sendProgress(progress, openFileUpdate(path, size))

	start := time.Now()
	body := &countingReader{
		r:       f,
		limiter: progressLimiter(),
		report:  func(n int64) { sendProgress(progress, sendBytesUpdate(n, size)) },
	}

	res, err := store.Store(ctx, body, opts)
	if res == nil {
		if err == nil {
			err = fmt.Errorf("%w: empty store result", shared.ErrAPIRequest)
		}
		sendProgress(progress, storeFailedUpdate(path, err))
		return nil, err
	}

	result := &UploadResult{
		Path:     path,
		Size:     body.n,
		Blob:     res.Blob,
		Response: res.Response,
		Elapsed:  time.Since(start),
	}

	if res.Response != nil && !res.Response.OK() {
		err = fmt.Errorf("%w: publisher status %d: %s", shared.ErrUpstream, res.Response.StatusCode, shared.Truncate(string(res.Response.Body), 200))
	}
	if err != nil {
		sendProgress(progress, storeFailedUpdate(path, err))
		return result, err
	}

	sendProgress(progress, sendBytesUpdate(body.n, size))
	sendProgress(progress, storeCompleteUpdate(result))
	return result, nil
}

// countingWriter mirrors countingReader for downloads.
type countingWriter struct {
	w       io.Writer
	n       int64
	limiter *rate.Limiter
	report  func(n int64)
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if n > 0 && c.limiter.Allow() {
		c.report(c.n)
	}
	return n, err
}

// DownloadBlob copies a blob from store into w and returns the byte count.
func DownloadBlob(ctx context.Context, progress chan<- ProgressUpdate, store services.BlobStore, blobID string, w io.Writer) (int64, error) {
	if store == nil {
		return 0, fmt.Errorf("%w: blob store not initialized", shared.ErrServiceUnavailable)
	}

	blob, err := store.Read(ctx, blobID)
	if err != nil {
		return 0, err
	}
	defer blob.Body.Close()

	total := blob.ContentLength
	sendProgress(progress, fetchBlobUpdate(0, total, blobID))

	dst := &countingWriter{
		w:       w,
		limiter: progressLimiter(),
		report:  func(n int64) { sendProgress(progress, fetchBlobUpdate(n, total, blobID)) },
	}
	if _, err := io.Copy(dst, blob.Body); err != nil {
		return dst.n, fmt.Errorf("failed to copy blob %s: %w", blobID, err)
	}

	sendProgress(progress, fetchBlobUpdate(dst.n, total, blobID))
	return dst.n, nil
}

// BulkUploadOpts configures [BulkUpload].
type BulkUploadOpts struct {
	Store        services.StoreOptions // Forwarded to every upload
	NumWorkers   int                   // Concurrent uploads (default: 3, max: 8)
	RateLimit    float64               // Uploads started per second (default: 2)
	ManifestPath string                // Optional JSON manifest destination
}

// FileUploadResult is one entry of a bulk upload.
type FileUploadResult struct {
	Path     string `json:"path"`
	Success  bool   `json:"success"`
	BlobID   string `json:"blob_id,omitempty"`
	ObjectID string `json:"object_id,omitempty"`
	Size     int64  `json:"size"`
	EndEpoch int64  `json:"end_epoch,omitempty"`
	Error    string `json:"error,omitempty"`

	index int
}

// BulkUploadResult summarizes a bulk upload. Results keep the input order.
type BulkUploadResult struct {
	TotalFiles   int                `json:"total_files"`
	Succeeded    int                `json:"succeeded"`
	Failed       int                `json:"failed"`
	Results      []FileUploadResult `json:"results"`
	ManifestPath string             `json:"-"`
}

type uploadJob struct {
	index int
	path  string
}

// BulkUpload stores several files concurrently with a worker pool.
//
// Individual failures are recorded in the result rather than aborting the batch.
func BulkUpload(ctx context.Context, prog chan<- ProgressUpdate, store services.BlobStore, paths []string, opts BulkUploadOpts) (*BulkUploadResult, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: blob store not initialized", shared.ErrServiceUnavailable)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no files to upload", shared.ErrMissingArgument)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 8 {
		opts.NumWorkers = 8
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan uploadJob, len(paths))
	results := make(chan FileUploadResult, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go uploadWorker(ctx, &wg, store, opts.Store, jobs, results)
	}

	go func() {
		defer close(jobs)
		for i, path := range paths {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- uploadJob{index: i, path: path}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	result := &BulkUploadResult{TotalFiles: len(paths), Results: make([]FileUploadResult, 0, len(paths))}
	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)
		if res.Success {
			result.Succeeded++
			sendProgress(prog, bulkCompletedUpdate(completed, len(paths), res))
		} else {
			result.Failed++
			sendProgress(prog, bulkFailedUpdate(completed, len(paths), res))
		}
	}
	sort.Slice(result.Results, func(i, j int) bool { return result.Results[i].index < result.Results[j].index })

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if opts.ManifestPath != "" {
		if err := writeManifest(result, opts.ManifestPath); err != nil {
			return result, fmt.Errorf("upload completed but failed to write manifest: %w", err)
		}
		result.ManifestPath = opts.ManifestPath
	}
	return result, nil
}

func uploadWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	store services.BlobStore,
	opts services.StoreOptions,
	jobs <-chan uploadJob,
	results chan<- FileUploadResult,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}

		res, err := UploadBlob(ctx, nil, store, job.path, opts)
		entry := FileUploadResult{Path: job.path, index: job.index}
		if res != nil {
			entry.Size = res.Size
		}
		if info := blobInfo(res); info != nil {
			entry.BlobID = info.BlobID
			entry.ObjectID = info.ObjectID
			entry.EndEpoch = info.EndEpoch
		}
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Success = true
		}
		results <- entry
	}
}

// blobInfo is a nil-safe accessor for worker results.
func blobInfo(res *UploadResult) *services.BlobInfo {
	if res == nil {
		return nil
	}
	return res.Blob
}

func writeManifest(result *BulkUploadResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
