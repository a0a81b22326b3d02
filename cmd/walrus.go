package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/amply/internal/services"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/desertthunder/amply/internal/tasks"
	"github.com/urfave/cli/v3"
)

// progressPrinter drains updates onto w until the returned stop func is called.
func progressPrinter(w io.Writer) (chan<- tasks.ProgressUpdate, func()) {
	ch := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range ch {
			switch update.Phase {
			case tasks.OpenFile:
				fmt.Fprintf(w, "📤 %s\n", update.Message)
			case tasks.SendBytes, tasks.FetchBlob:
				fmt.Fprintf(w, "   %3.0f%%  %s\n", update.Percent()*100, update.Message)
			default:
				fmt.Fprintf(w, "%s\n", update.Message)
			}
		}
	}()
	return ch, func() {
		close(ch)
		wg.Wait()
	}
}

// WalrusPut stores one file directly, or several through the bulk worker pool.
func (r *Runner) WalrusPut(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("%w: at least one file", shared.ErrMissingArgument)
	}

	opts := services.StoreOptions{
		Deletable: cmd.Bool("deletable"),
		Epochs:    cmd.Int("epochs"),
	}
	asJSON := cmd.Bool("json")

	var progress chan<- tasks.ProgressUpdate
	stop := func() {}
	if !asJSON {
		progress, stop = progressPrinter(r.output)
	}

	if len(paths) == 1 {
		result, err := tasks.UploadBlob(ctx, progress, r.walrus, paths[0], opts)
		stop()
		if err != nil {
			if result != nil && result.Response != nil && errors.Is(err, shared.ErrUpstream) {
				r.logger.Debug("publisher response", "status", result.Response.StatusCode, "body", string(result.Response.Body))
			}
			return err
		}
		if asJSON {
			return r.writeJSON(result.Blob, true)
		}
		r.printBlob(result)
		return nil
	}

	result, err := tasks.BulkUpload(ctx, progress, r.walrus, paths, tasks.BulkUploadOpts{
		Store:        opts,
		NumWorkers:   cmd.Int("workers"),
		ManifestPath: cmd.String("manifest"),
	})
	stop()
	if err != nil {
		return err
	}

	if asJSON {
		return r.writeJSON(result, true)
	}

	r.writePlain("\n")
	r.writePlainHeader("Upload Complete")
	r.writePlain("Stored: %d/%d\n", result.Succeeded, result.TotalFiles)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	if result.Failed > 0 {
		return fmt.Errorf("%w: %d of %d uploads failed", shared.ErrUpstream, result.Failed, result.TotalFiles)
	}
	return nil
}

func (r *Runner) printBlob(result *tasks.UploadResult) {
	r.writePlain("\n")
	r.writePlainHeader("Upload Complete")
	r.writePlain("File: %s (%s in %s)\n", result.Path, tasks.FormatBytes(result.Size), result.Elapsed.Round(time.Millisecond))
	if result.Blob == nil {
		return
	}
	r.writePlain("Blob ID: %s\n", result.Blob.BlobID)
	if result.Blob.ObjectID != "" {
		r.writePlain("Object ID: %s\n", result.Blob.ObjectID)
	}
	if result.Blob.EndEpoch > 0 {
		r.writePlain("End epoch: %d\n", result.Blob.EndEpoch)
	}
	r.writePlain("Deletable: %t\n", result.Blob.Deletable)
}

// WalrusGet downloads a blob to --output, or to the runner's output when none is given.
func (r *Runner) WalrusGet(ctx context.Context, cmd *cli.Command) error {
	blobID := strings.TrimSpace(cmd.StringArg("blob-id"))
	if blobID == "" {
		return fmt.Errorf("%w: blob id", shared.ErrMissingArgument)
	}

	outPath := cmd.String("output")
	if outPath == "" || outPath == "-" {
		_, err := tasks.DownloadBlob(ctx, nil, r.walrus, blobID, r.output)
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}

	progress, stop := progressPrinter(r.output)
	n, err := tasks.DownloadBlob(ctx, progress, r.walrus, blobID, f)
	stop()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(outPath)
		return err
	}

	r.logger.Info("blob saved", "blob", blobID, "path", outPath, "bytes", n)
	r.writePlain("✓ Saved %s to %s\n", tasks.FormatBytes(n), outPath)
	return nil
}
