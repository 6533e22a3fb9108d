package etl

// reader.go turns one input file into raw records. Batches arrive as
// delimited text (.csv) or as workbooks (.xlsx); both share the same header
// contract and produce identical RawRecords.
//
// Everything here is a file-level concern: an unreadable file, an oversized
// file, or a header missing required columns fails the whole file. Row
// content is never judged here; that is the validator's job.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// headerIndex maps lowercased column names to their position in the file.
type headerIndex map[string]int

// ReadBatchFile reads an input file into raw records.
// maxSize caps the file size in bytes; zero means no limit.
func ReadBatchFile(path string, maxSize int64) ([]RawRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("file exceeds %dMB limit", maxSize/(1024*1024))
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	return recordsFromRows(rows)
}

// IsBatchFile reports whether a file name looks like an invoice batch.
func IsBatchFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".csv" || ext == ".xlsx"
}

// readCSV reads a delimited text file into rows.
func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	r := csv.NewReader(bytes.NewReader(sanitizeUTF8(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

// recordsFromRows validates the header contract and maps data rows to
// RawRecords. Fully empty rows are skipped; short rows yield empty cells.
func recordsFromRows(rows [][]string) ([]RawRecord, error) {
	headerLine := -1
	for i, row := range rows {
		if !isEmptyRow(row) {
			headerLine = i
			break
		}
	}
	if headerLine < 0 {
		return nil, fmt.Errorf("empty file")
	}

	idx, err := validateHeader(rows[headerLine])
	if err != nil {
		return nil, err
	}

	var records []RawRecord
	for i, row := range rows[headerLine+1:] {
		if isEmptyRow(row) {
			continue
		}
		records = append(records, RawRecord{
			InvoiceID:       cell(row, idx, "invoice_id"),
			IssueDate:       cell(row, idx, "issue_date"),
			CustomerID:      cell(row, idx, "customer_id"),
			CustomerName:    cell(row, idx, "customer_name"),
			ItemDescription: cell(row, idx, "item_description"),
			Qty:             cell(row, idx, "qty"),
			UnitPrice:       cell(row, idx, "unit_price"),
			Total:           cell(row, idx, "total"),
			Status:          cell(row, idx, "status"),
			Line:            headerLine + i + 2, // 1-indexed, after header
		})
	}

	return records, nil
}

// validateHeader checks that every required column is present and returns
// the column index. Missing columns are a whole-file error.
func validateHeader(header []string) (headerIndex, error) {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		idx[strings.ToLower(CleanCell(h))] = i
	}

	var missing []string
	for _, col := range Columns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	return idx, nil
}

// cell safely retrieves a cell value from a row by header name.
func cell(row []string, idx headerIndex, name string) string {
	pos, ok := idx[name]
	if !ok || pos >= len(row) {
		return ""
	}
	return CleanCell(row[pos])
}

// isEmptyRow reports whether every cell in the row is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune so
// the CSV reader never chokes on mixed-encoding exports.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
