package etl

// pipeline.go sequences one run: load dimensions once, then walk the input
// directory one file at a time through the per-file state machine
// discovered → staged → validated → fact_loaded → rejections_loaded → done.
//
// Failure isolation follows the error taxonomy: a file that cannot be read,
// staged or loaded aborts only that file; the run continues with the next
// one. Only dimension loading is fatal to the run, because no record can be
// judged without reference data. Retries are the invoker's concern.

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/invoicepipe/invoicepipe/internal/logging"
)

// ArchiveDirName is the subdirectory of the input directory that processed
// files are moved into.
const ArchiveDirName = "archived"

// Config holds the pipeline's runtime settings.
type Config struct {
	// InputDir is the directory scanned for batch files.
	InputDir string

	// AllowMissingInvoiceID enables invoice id synthesis in the validator.
	AllowMissingInvoiceID bool

	// ArchiveProcessed moves files into ArchiveDirName after a clean run.
	ArchiveProcessed bool

	// MaxFileSize caps input file size in bytes; zero means no limit.
	MaxFileSize int64
}

// Pipeline drives the clean-validate-load flow for one run.
// Files are processed strictly one at a time; the dimensions are loaded
// once and shared read-only across all files.
type Pipeline struct {
	store Store
	cfg   Config
}

// NewPipeline creates a pipeline over the given store.
func NewPipeline(store Store, cfg Config) *Pipeline {
	return &Pipeline{store: store, cfg: cfg}
}

// Run processes every batch file in the input directory and returns a
// per-run summary. It returns an error only for run-level failures:
// unreadable reference data or an unreadable input directory.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	dims, err := p.store.LoadDimensions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dimensions: %w", err)
	}

	entries, err := os.ReadDir(p.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsBatchFile(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	summary := &RunSummary{Reasons: make(map[RejectionReason]int)}

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result := p.ProcessFile(ctx, dims, filepath.Join(p.cfg.InputDir, name))
		summary.Files = append(summary.Files, result)

		if result.Failed() {
			summary.FilesFailed++
			continue
		}

		summary.FilesProcessed++
		summary.RowsStaged += result.Staged
		summary.FactsLoaded += result.Loaded
		summary.RowsRejected += result.Rejected
		for reason, n := range result.Reasons {
			summary.Reasons[reason] += n
		}

		if p.cfg.ArchiveProcessed {
			p.archive(filepath.Join(p.cfg.InputDir, name))
		}
	}

	return summary, nil
}

// ProcessFile runs one file through the batch state machine.
// All outcomes, including failures, are reported in the FileResult; the
// caller decides what a failed file means for the run.
func (p *Pipeline) ProcessFile(ctx context.Context, dims *Dimensions, path string) FileResult {
	start := time.Now()

	batch := Batch{
		ID:       uuid.NewString(),
		FileName: filepath.Base(path),
	}
	logger := logging.WithBatch(batch.ID, batch.FileName)
	logger.Info("processing file")

	result := FileResult{
		BatchID:  batch.ID,
		FileName: batch.FileName,
		Phase:    PhaseDiscovered,
		Reasons:  make(map[RejectionReason]int),
	}
	fail := func(err error) FileResult {
		result.Phase = PhaseFailed
		result.Error = err.Error()
		result.Duration = time.Since(start)
		logger.Error("file aborted", "error", err)
		return result
	}

	rows, err := ReadBatchFile(path, p.cfg.MaxFileSize)
	if err != nil {
		return fail(err)
	}

	// Stage everything verbatim before any judgment. Staging is the
	// system of record for what was received.
	staged, err := p.store.StageRaw(ctx, batch, rows)
	if err != nil {
		return fail(fmt.Errorf("stage rows: %w", err))
	}
	result.Phase = PhaseStaged
	result.Staged = staged
	logger.Info("staging complete", "rows", staged)

	validator := NewValidator(dims, p.cfg.AllowMissingInvoiceID, logger)

	var valid []ValidatedRecord
	var rejections []Rejection
	for _, row := range rows {
		rec, rej := validator.Validate(row)
		if rej != nil {
			rejections = append(rejections, *rej)
			result.Reasons[rej.Reason]++
			continue
		}
		valid = append(valid, rec)
	}
	result.Phase = PhaseValidated

	loaded, err := p.store.InsertFacts(ctx, valid)
	if err != nil {
		return fail(fmt.Errorf("load facts: %w", err))
	}
	result.Phase = PhaseFactLoaded
	result.Loaded = loaded
	if len(valid) == 0 {
		logger.Warn("no valid records to load into fact store")
	} else {
		logger.Info("facts loaded", "accepted", len(valid), "inserted", loaded)
	}

	rejected, err := p.store.InsertRejections(ctx, batch, rejections)
	if err != nil {
		return fail(fmt.Errorf("load rejections: %w", err))
	}
	result.Phase = PhaseRejectionsLoaded
	result.Rejected = rejected
	if rejected > 0 {
		logger.Warn("rejected records", "count", rejected)
	}

	result.Phase = PhaseDone
	result.Duration = time.Since(start)
	logger.Info("file done",
		"staged", result.Staged,
		"loaded", result.Loaded,
		"rejected", result.Rejected,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result
}

// archive moves a processed file into the archive subdirectory.
// Best effort: a failed move is logged, never fatal. Re-running a file
// that stayed behind is safe because the fact loader is insert-if-absent.
func (p *Pipeline) archive(path string) {
	dir := filepath.Join(filepath.Dir(path), ArchiveDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("archive dir", "file_name", filepath.Base(path), "error", err)
		return
	}
	dest := filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		slog.Warn("archive move", "file_name", filepath.Base(path), "error", err)
	}
}
