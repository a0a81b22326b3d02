package tasks

import (
	"fmt"
	"path/filepath"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
// For byte phases Step and Total count bytes; for bulk phases they count files.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int64  // Current step within phase
	Total   int64  // Total steps in this phase (0 when unknown)
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Percent is Step/Total in [0,1], or 0 when the total is unknown.
func (u ProgressUpdate) Percent() float64 {
	if u.Total <= 0 {
		return 0
	}
	p := float64(u.Step) / float64(u.Total)
	if p > 1 {
		return 1
	}
	return p
}

// Operation phase enumeration
type Phase int

const (
	OpenFile Phase = iota
	SendBytes
	StoreComplete
	StoreFailed
	FetchBlob
	BulkProgress
)

func (p Phase) String() string {
	switch p {
	case OpenFile:
		return "open_file"
	case SendBytes:
		return "send_bytes"
	case StoreComplete:
		return "store_complete"
	case StoreFailed:
		return "store_failed"
	case FetchBlob:
		return "fetch_blob"
	case BulkProgress:
		return "bulk_upload"
	default:
		return ""
	}
}

func openFileUpdate(path string, size int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   OpenFile,
		Step:    0,
		Total:   size,
		Message: fmt.Sprintf("Uploading %s (%s)...", filepath.Base(path), FormatBytes(size)),
	}
}

func sendBytesUpdate(sent, total int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SendBytes,
		Step:    sent,
		Total:   total,
		Message: fmt.Sprintf("%s / %s", FormatBytes(sent), FormatBytes(total)),
	}
}

func storeCompleteUpdate(res *UploadResult) ProgressUpdate {
	msg := "Stored"
	if res.Blob != nil {
		msg = fmt.Sprintf("Stored blob %s", res.Blob.BlobID)
		if res.Blob.AlreadyCertified {
			msg += " (already certified)"
		}
	}
	return ProgressUpdate{
		Phase:   StoreComplete,
		Step:    res.Size,
		Total:   res.Size,
		Message: msg,
		Data:    res,
	}
}

func storeFailedUpdate(path string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StoreFailed,
		Message: fmt.Sprintf("✗ %s: %v", filepath.Base(path), err),
	}
}

func fetchBlobUpdate(received, total int64, blobID string) ProgressUpdate {
	msg := fmt.Sprintf("%s: %s", blobID, FormatBytes(received))
	if total > 0 {
		msg = fmt.Sprintf("%s: %s / %s", blobID, FormatBytes(received), FormatBytes(total))
	}
	return ProgressUpdate{
		Phase:   FetchBlob,
		Step:    received,
		Total:   total,
		Message: msg,
	}
}

func bulkCompletedUpdate(step, total int, res FileUploadResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BulkProgress,
		Step:    int64(step),
		Total:   int64(total),
		Message: fmt.Sprintf("[%d/%d] ✓ %s → %s", step, total, filepath.Base(res.Path), res.BlobID),
		Data:    res,
	}
}

func bulkFailedUpdate(step, total int, res FileUploadResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BulkProgress,
		Step:    int64(step),
		Total:   int64(total),
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, filepath.Base(res.Path), res.Error),
		Data:    res,
	}
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
