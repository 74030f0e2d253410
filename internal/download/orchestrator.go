// Package download turns one illustration record into one outcome per page:
// deterministic naming, idempotent skip-on-exists, per-page retries with
// partial-file cleanup, and optional frame-archive conversion. Byte transfer
// is delegated to the gallery client and conversion to the ugoira codec;
// terminal outcomes are mirrored into the archive ledger when one is
// attached.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"pixie/internal/archive"
	"pixie/internal/errkind"
	"pixie/internal/illust"
	"pixie/internal/ugoira"
)

// Fetcher is the slice of the gallery client the orchestrator needs.
type Fetcher interface {
	Illust(ctx context.Context, id int64) (illust.Illust, error)
	StreamTo(ctx context.Context, url string, sink io.Writer) (int64, error)
}

// Ledger records terminal page outcomes. It is optional.
type Ledger interface {
	Append(ctx context.Context, record archive.Record) error
	Seen(ctx context.Context, illustID int64) (bool, error)
}

// Outcome classifies what happened to one page.
type Outcome string

const (
	OutcomeDownloaded  Outcome = archive.OutcomeDownloaded
	OutcomeSkippedFile Outcome = archive.OutcomeSkippedFile
	OutcomeSkippedFake Outcome = archive.OutcomeSkippedFake
	OutcomeFailed      Outcome = archive.OutcomeFailed
)

// PageResult is the terminal outcome of one page of one record.
type PageResult struct {
	URL     string
	Path    string
	Outcome Outcome
	Err     error
}

// Failed reports whether the page ended in failure.
func (r PageResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}

// DownloadError is surfaced after a page exhausts its retry budget. It
// carries the record and the last cause.
type DownloadError struct {
	IllustID int64
	Page     int
	URL      string
	Attempts int
	Cause    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("illust %d page %d failed after %d attempts: %v", e.IllustID, e.Page, e.Attempts, e.Cause)
}

func (e *DownloadError) Unwrap() error { return e.Cause }

// Options control one record download.
type Options struct {
	// Dir is the destination directory.
	Dir string
	// Name is the naming template; empty keeps the remote file name.
	Name string
	// MaxTries bounds per-page attempts; zero retries until success.
	MaxTries int
	// Order is the 1-based enumeration position, zero when unset.
	Order int
	// ConvertUgoira converts frame archives to GIF instead of storing the
	// zip plus a duration sidecar.
	ConvertUgoira bool
	// Replace overwrites existing destinations instead of skipping them.
	Replace bool
	// CheckExists lists extra directories whose matching base names also
	// count as already downloaded.
	CheckExists []string
	// Fake resolves names and existence but performs no network calls or
	// writes.
	Fake bool
	// SkipArchived skips records the ledger has already seen.
	SkipArchived bool
}

// Config wires an Orchestrator.
type Config struct {
	Ledger Ledger
	Logger *slog.Logger
	// RunID tags ledger rows; one is generated when empty.
	RunID string
}

// Orchestrator downloads records page by page.
type Orchestrator struct {
	fetcher Fetcher
	ledger  Ledger
	logger  *slog.Logger
	runID   string
}

// New builds an Orchestrator around a gallery client.
func New(fetcher Fetcher, cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Orchestrator{
		fetcher: fetcher,
		ledger:  cfg.Ledger,
		logger:  logger.With("component", "download"),
		runID:   runID,
	}
}

// RunID returns the ledger tag for this orchestrator's downloads.
func (o *Orchestrator) RunID() string { return o.runID }

// ByID fetches a record by identity and downloads it.
func (o *Orchestrator) ByID(ctx context.Context, id int64, opts Options) ([]PageResult, error) {
	record, err := o.fetcher.Illust(ctx, id)
	if err != nil {
		return nil, err
	}
	return o.Record(ctx, record, opts)
}

// Record downloads every page of one record. Pages are independent: a
// failing page never cancels its siblings. The returned error is non-nil
// only for record-level problems (invalid record, archived skip lookup);
// per-page failures ride on the PageResult.
func (o *Orchestrator) Record(ctx context.Context, record illust.Illust, opts Options) ([]PageResult, error) {
	if err := record.Validate(); err != nil {
		return nil, errkind.Wrap(errkind.ErrConfiguration, "download", "validate", "invalid record", err)
	}

	if opts.SkipArchived && o.ledger != nil {
		seen, err := o.ledger.Seen(ctx, record.ID)
		if err != nil {
			return nil, fmt.Errorf("check archive ledger: %w", err)
		}
		if seen {
			results := make([]PageResult, 0, len(record.PageURLs))
			for page, url := range record.PageURLs {
				result := PageResult{URL: url, Path: o.destination(record, page, url, opts), Outcome: OutcomeSkippedFile}
				o.recordOutcome(ctx, record, page, result)
				results = append(results, result)
			}
			o.logger.Debug("record already archived", "illust_id", record.ID)
			return results, nil
		}
	}

	results := make([]PageResult, 0, len(record.PageURLs))
	for page, url := range record.PageURLs {
		result := o.downloadPage(ctx, record, page, url, opts)
		o.recordOutcome(ctx, record, page, result)
		results = append(results, result)
	}
	return results, nil
}

func (o *Orchestrator) destination(record illust.Illust, page int, url string, opts Options) string {
	name := remoteName(url)
	if record.IsUgoira() && opts.ConvertUgoira {
		name = rewriteArchiveExt(name)
	}
	name = renderName(opts.Name, record, page, opts.Order, name)
	return filepath.Join(opts.Dir, name)
}

func (o *Orchestrator) downloadPage(ctx context.Context, record illust.Illust, page int, url string, opts Options) PageResult {
	dest := o.destination(record, page, url, opts)
	result := PageResult{URL: url, Path: dest}

	if !opts.Replace && alreadyHave(dest, opts.CheckExists) {
		result.Outcome = OutcomeSkippedFile
		return result
	}
	if opts.Fake {
		result.Outcome = OutcomeSkippedFake
		return result
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := o.fetchAndStore(ctx, record, url, dest, opts)
		if err == nil {
			result.Outcome = OutcomeDownloaded
			return result
		}
		o.removePartial(dest)
		lastErr = err
		o.logger.Warn("page attempt failed",
			"illust_id", record.ID, "page", page, "attempt", attempt, "error", err)

		if errkind.Fatal(err) || ctx.Err() != nil || (opts.MaxTries > 0 && attempt >= opts.MaxTries) {
			result.Outcome = OutcomeFailed
			result.Err = &DownloadError{
				IllustID: record.ID,
				Page:     page,
				URL:      url,
				Attempts: attempt,
				Cause:    lastErr,
			}
			return result
		}
	}
}

// fetchAndStore performs one attempt: stream into memory, then materialize
// the destination. Any partial destination left behind on error is removed
// by the caller before the next attempt.
func (o *Orchestrator) fetchAndStore(ctx context.Context, record illust.Illust, url, dest string, opts Options) error {
	var buffer bytes.Buffer
	if _, err := o.fetcher.StreamTo(ctx, url, &buffer); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errkind.Wrap(errkind.ErrDownload, "download", "store", "create destination dir", err)
	}

	if record.IsUgoira() {
		return o.storeUgoira(record, buffer.Bytes(), dest, opts)
	}
	if err := os.WriteFile(dest, buffer.Bytes(), 0o644); err != nil {
		return errkind.Wrap(errkind.ErrDownload, "download", "store", "write file", err)
	}
	return nil
}

func (o *Orchestrator) storeUgoira(record illust.Illust, archiveBytes []byte, dest string, opts Options) error {
	if !opts.ConvertUgoira {
		if err := os.WriteFile(dest, archiveBytes, 0o644); err != nil {
			return errkind.Wrap(errkind.ErrDownload, "download", "store", "write archive", err)
		}
		if err := ugoira.WriteSidecar(ugoira.SidecarPath(dest), record.FrameDelays); err != nil {
			return errkind.Wrap(errkind.ErrDownload, "download", "store", "write sidecar", err)
		}
		return nil
	}

	out, err := os.Create(dest)
	if err != nil {
		return errkind.Wrap(errkind.ErrDownload, "download", "convert", "create output", err)
	}
	if err := ugoira.Convert(archiveBytes, record.FrameDelays, out); err != nil {
		_ = out.Close()
		return errkind.Wrap(errkind.ErrDownload, "download", "convert", "encode animation", err)
	}
	if err := out.Close(); err != nil {
		return errkind.Wrap(errkind.ErrDownload, "download", "convert", "close output", err)
	}
	return nil
}

func (o *Orchestrator) recordOutcome(ctx context.Context, record illust.Illust, page int, result PageResult) {
	if o.ledger == nil {
		return
	}
	row := archive.Record{
		RunID:    o.runID,
		IllustID: record.ID,
		Page:     page,
		URL:      result.URL,
		Path:     result.Path,
		Outcome:  string(result.Outcome),
	}
	if result.Err != nil {
		row.ErrorMessage = result.Err.Error()
	}
	if err := o.ledger.Append(ctx, row); err != nil {
		o.logger.Warn("ledger append failed", "illust_id", record.ID, "page", page, "error", err)
	}
}

func alreadyHave(dest string, checkDirs []string) bool {
	if fileExists(dest) {
		return true
	}
	base := filepath.Base(dest)
	for _, dir := range checkDirs {
		if fileExists(filepath.Join(dir, base)) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// removePartial clears a failed attempt's destination and sidecar. Removal
// failures are logged, not returned; the retry loop proceeds either way.
func (o *Orchestrator) removePartial(dest string) {
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.logger.Warn("partial file removal failed", "path", dest, "error", err)
	}
	if sidecar := ugoira.SidecarPath(dest); fileExists(sidecar) {
		if err := os.Remove(sidecar); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.logger.Warn("sidecar removal failed", "path", sidecar, "error", err)
		}
	}
}
