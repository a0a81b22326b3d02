// Package tasks runs long blob transfers against Walrus with real-time progress reporting.
//
// # Operations
//
//  1. [UploadBlob] : stream one local file to the publisher
//     - Counts bytes as the HTTP client reads them
//     - Returns the parsed blob info and the raw publisher answer
//
//  2. [DownloadBlob] : copy a blob from the aggregator into a writer
//
//  3. [BulkUpload] : upload many files with a worker pool
//     - Starts are throttled with a [rate.Limiter]
//     - Partial failures are recorded per file; an optional JSON manifest is written at the end
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking, and byte updates are throttled to
// [DefaultProgressInterval] so a fast link does not flood the receiver.
package tasks
