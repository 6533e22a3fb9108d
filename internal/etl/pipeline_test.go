package etl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// ----------------------------------------------------------------------------
// In-memory store double
// ----------------------------------------------------------------------------

type fakeStore struct {
	dims    *Dimensions
	dimsErr error

	stageErr error
	factErr  error
	rejErr   error

	stagedRows []RawRecord
	stagedIDs  []string // batch id per StageRaw call
	facts      map[string]ValidatedRecord
	rejections []Rejection
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		dims:  testDimensions(),
		facts: make(map[string]ValidatedRecord),
	}
}

func (f *fakeStore) LoadDimensions(ctx context.Context) (*Dimensions, error) {
	if f.dimsErr != nil {
		return nil, f.dimsErr
	}
	return f.dims, nil
}

func (f *fakeStore) StageRaw(ctx context.Context, batch Batch, rows []RawRecord) (int64, error) {
	if f.stageErr != nil {
		return 0, f.stageErr
	}
	f.stagedRows = append(f.stagedRows, rows...)
	f.stagedIDs = append(f.stagedIDs, batch.ID)
	return int64(len(rows)), nil
}

func (f *fakeStore) InsertFacts(ctx context.Context, records []ValidatedRecord) (int64, error) {
	if f.factErr != nil {
		return 0, f.factErr
	}
	var inserted int64
	for _, rec := range records {
		if _, exists := f.facts[rec.InvoiceID]; exists {
			continue // insert-if-absent: never overwrite
		}
		f.facts[rec.InvoiceID] = rec
		inserted++
	}
	return inserted, nil
}

func (f *fakeStore) InsertRejections(ctx context.Context, batch Batch, rejections []Rejection) (int64, error) {
	if f.rejErr != nil {
		return 0, f.rejErr
	}
	f.rejections = append(f.rejections, rejections...)
	return int64(len(rejections)), nil
}

// ----------------------------------------------------------------------------
// Fixtures
// ----------------------------------------------------------------------------

const batchHeader = "invoice_id,issue_date,customer_id,customer_name,item_description,qty,unit_price,total,status\n"

// writeBatchFile writes a CSV with 10 rows: 7 valid, 2 with unknown
// customers, 1 with a non-positive quantity.
func writeBatchFile(t *testing.T, dir, name string) string {
	t.Helper()

	content := batchHeader
	for i := 1; i <= 7; i++ {
		content += fmt.Sprintf("INV-%03d,2024-01-%02d,C001,Acme Corp,Widget,2,3.00,6.00,PAID\n", i, i)
	}
	content += "INV-008,2024-01-08,C777,Nobody Inc,Widget,2,3.00,6.00,PAID\n"
	content += "INV-009,2024-01-09,C888,Ghost LLC,Widget,2,3.00,6.00,PAID\n"
	content += "INV-010,2024-01-10,C001,Acme Corp,Widget,0,3.00,0.00,PAID\n"

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func newTestPipeline(store Store, dir string) *Pipeline {
	return NewPipeline(store, Config{InputDir: dir})
}

// ----------------------------------------------------------------------------
// Run
// ----------------------------------------------------------------------------

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeBatchFile(t, dir, "invoices_2024_01.csv")

	store := newFakeStore()
	summary, err := newTestPipeline(store, dir).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.FilesProcessed != 1 || summary.FilesFailed != 0 {
		t.Fatalf("files processed/failed = %d/%d, want 1/0",
			summary.FilesProcessed, summary.FilesFailed)
	}
	if summary.RowsStaged != 10 {
		t.Errorf("RowsStaged = %d, want 10", summary.RowsStaged)
	}
	if summary.FactsLoaded != 7 {
		t.Errorf("FactsLoaded = %d, want 7", summary.FactsLoaded)
	}
	if summary.RowsRejected != 3 {
		t.Errorf("RowsRejected = %d, want 3", summary.RowsRejected)
	}
	if summary.Reasons[ReasonUnknownCustomer] != 2 {
		t.Errorf("UNKNOWN_CUSTOMER = %d, want 2", summary.Reasons[ReasonUnknownCustomer])
	}
	if summary.Reasons[ReasonInvalidQuantity] != 1 {
		t.Errorf("INVALID_QUANTITY = %d, want 1", summary.Reasons[ReasonInvalidQuantity])
	}

	// Every staged row became exactly one of fact or rejection.
	if got := len(store.facts) + len(store.rejections); got != len(store.stagedRows) {
		t.Errorf("facts+rejections = %d, want %d (one outcome per row)",
			got, len(store.stagedRows))
	}
}

func TestRun_RerunIsIdempotentForFacts(t *testing.T) {
	dir := t.TempDir()
	writeBatchFile(t, dir, "invoices.csv")

	store := newFakeStore()
	pipe := newTestPipeline(store, dir)

	first, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if first.FactsLoaded != 7 {
		t.Errorf("first FactsLoaded = %d, want 7", first.FactsLoaded)
	}
	// Facts: insert-if-absent, so the second run inserts nothing new.
	if second.FactsLoaded != 0 {
		t.Errorf("second FactsLoaded = %d, want 0", second.FactsLoaded)
	}
	if len(store.facts) != 7 {
		t.Errorf("fact count after rerun = %d, want 7", len(store.facts))
	}

	// Staging and rejections are append-only: counts double. This
	// asymmetry with the fact store is deliberate.
	if len(store.stagedRows) != 20 {
		t.Errorf("staged rows after rerun = %d, want 20", len(store.stagedRows))
	}
	if len(store.rejections) != 6 {
		t.Errorf("rejections after rerun = %d, want 6", len(store.rejections))
	}
}

func TestRun_DimensionFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeBatchFile(t, dir, "invoices.csv")

	store := newFakeStore()
	store.dimsErr = errors.New("connection refused")

	if _, err := newTestPipeline(store, dir).Run(context.Background()); err == nil {
		t.Fatal("Run() = nil error, want fatal dimension load failure")
	}
	if len(store.stagedRows) != 0 {
		t.Error("rows were staged despite missing dimensions")
	}
}

func TestRun_FileFailureDoesNotAbortRun(t *testing.T) {
	dir := t.TempDir()
	// a_bad.csv sorts first and is missing required columns.
	if err := os.WriteFile(filepath.Join(dir, "a_bad.csv"),
		[]byte("invoice_id,qty\nINV-1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeBatchFile(t, dir, "b_good.csv")

	store := newFakeStore()
	summary, err := newTestPipeline(store, dir).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.FilesFailed != 1 {
		t.Errorf("FilesFailed = %d, want 1", summary.FilesFailed)
	}
	if summary.FilesProcessed != 1 {
		t.Errorf("FilesProcessed = %d, want 1", summary.FilesProcessed)
	}
	if summary.FactsLoaded != 7 {
		t.Errorf("FactsLoaded = %d, want 7 from the good file", summary.FactsLoaded)
	}

	var bad FileResult
	for _, f := range summary.Files {
		if f.FileName == "a_bad.csv" {
			bad = f
		}
	}
	if !bad.Failed() || bad.Error == "" {
		t.Errorf("bad file result = %+v, want failed with error", bad)
	}
}

func TestRun_StagingFailureAbortsFile(t *testing.T) {
	dir := t.TempDir()
	writeBatchFile(t, dir, "invoices.csv")

	store := newFakeStore()
	store.stageErr = errors.New("relation stg_invoices does not exist")

	summary, err := newTestPipeline(store, dir).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.FilesFailed != 1 {
		t.Errorf("FilesFailed = %d, want 1", summary.FilesFailed)
	}
	if len(store.facts) != 0 {
		t.Error("facts were loaded despite staging failure")
	}
	if summary.Files[0].Phase != PhaseFailed {
		t.Errorf("Phase = %s, want %s", summary.Files[0].Phase, PhaseFailed)
	}
}

func TestRun_ArchivesProcessedFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeBatchFile(t, dir, "invoices.csv")

	store := newFakeStore()
	pipe := NewPipeline(store, Config{InputDir: dir, ArchiveProcessed: true})

	if _, err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("processed file still in input directory")
	}
	archived := filepath.Join(dir, ArchiveDirName, "invoices.csv")
	if _, err := os.Stat(archived); err != nil {
		t.Errorf("archived file missing: %v", err)
	}
}

// ----------------------------------------------------------------------------
// ProcessFile
// ----------------------------------------------------------------------------

func TestProcessFile_UniqueBatchIDs(t *testing.T) {
	dir := t.TempDir()
	path := writeBatchFile(t, dir, "invoices.csv")

	store := newFakeStore()
	pipe := newTestPipeline(store, dir)

	a := pipe.ProcessFile(context.Background(), store.dims, path)
	b := pipe.ProcessFile(context.Background(), store.dims, path)

	if a.BatchID == "" || a.BatchID == b.BatchID {
		t.Errorf("batch ids not unique: %q vs %q", a.BatchID, b.BatchID)
	}
	if len(store.stagedIDs) != 2 || store.stagedIDs[0] == store.stagedIDs[1] {
		t.Errorf("staged batch ids = %v, want two distinct ids", store.stagedIDs)
	}
}

func TestProcessFile_PhaseProgression(t *testing.T) {
	dir := t.TempDir()
	path := writeBatchFile(t, dir, "invoices.csv")

	store := newFakeStore()
	result := newTestPipeline(store, dir).ProcessFile(context.Background(), store.dims, path)

	if result.Phase != PhaseDone {
		t.Errorf("Phase = %s, want %s", result.Phase, PhaseDone)
	}
	if result.Staged != 10 || result.Loaded != 7 || result.Rejected != 3 {
		t.Errorf("counts = %d/%d/%d, want 10/7/3",
			result.Staged, result.Loaded, result.Rejected)
	}
}

func TestProcessFile_RejectionLoadFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeBatchFile(t, dir, "invoices.csv")

	store := newFakeStore()
	store.rejErr = errors.New("disk full")

	result := newTestPipeline(store, dir).ProcessFile(context.Background(), store.dims, path)
	if !result.Failed() {
		t.Fatalf("Phase = %s, want %s", result.Phase, PhaseFailed)
	}
	// Facts were already committed before the rejection write failed;
	// a re-run recovers because the fact loader is insert-if-absent.
	if len(store.facts) != 7 {
		t.Errorf("facts = %d, want 7", len(store.facts))
	}
}
