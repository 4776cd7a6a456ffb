// Package store persists flat record sets as CSV files with a header row.
//
// Reads are tolerant: a missing file yields an empty table, short rows leave
// cells absent. Writers to the same path are serialized within the process;
// separate processes writing the same file are not coordinated.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/observability"
)

// Row maps column name to cell text.
type Row map[string]string

// Table is an ordered set of columns plus rows keyed by column name.
type Table struct {
	Columns []string
	Rows    []Row
	// Skipped counts malformed records dropped while reading.
	Skipped int
}

// NewTable returns an empty table with the given column order.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Append adds a row. Columns the table has not seen yet are appended in sorted order.
func (t *Table) Append(row Row) {
	for _, col := range sortedKeys(row, t.Columns) {
		if !t.HasColumn(col) {
			t.Columns = append(t.Columns, col)
		}
	}
	t.Rows = append(t.Rows, row)
}

// HasColumn reports whether name is part of the header.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Len returns the row count.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

var (
	pathLocksMu sync.Mutex
	pathLocks   = map[string]*sync.Mutex{}
)

func lockPath(path string) func() {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	pathLocksMu.Lock()
	mu, ok := pathLocks[abs]
	if !ok {
		mu = &sync.Mutex{}
		pathLocks[abs] = mu
	}
	pathLocksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// ReadTable loads the CSV file at path. A missing or empty file returns an empty table and no error.
// Records that fail to parse, such as a row torn by an interrupted write, are dropped and
// counted in Skipped; the rest of the file is still returned.
func ReadTable(path string) (*Table, error) {
	unlock := lockPath(path)
	defer unlock()
	return readLocked(path)
}

func readLocked(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewTable(), nil
		}
		return nil, fmt.Errorf("open table %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return NewTable(), nil
		}
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	t := NewTable(header...)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			t.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read row %s: %w", path, err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// AppendTable adds the rows of t to the file at path, creating it if needed.
// Existing rows are never removed. When t carries columns the file lacks, the file
// is rewritten with the widened header and earlier rows get empty cells.
// A file holding malformed records or ending mid-row is rewritten without them before
// the new rows are added. An empty t leaves the file untouched.
func AppendTable(path string, t *Table) error {
	if t.Len() == 0 {
		return nil
	}
	start := time.Now()
	unlock := lockPath(path)
	defer unlock()

	err := appendLocked(path, t)
	recordWrite("append", start, err)
	return err
}

func appendLocked(path string, t *Table) error {
	existing, err := readLocked(path)
	if err != nil {
		return err
	}
	if len(existing.Columns) == 0 {
		return writeFile(path, t)
	}

	widened := false
	for _, col := range t.Columns {
		if !existing.HasColumn(col) {
			existing.Columns = append(existing.Columns, col)
			widened = true
		}
	}
	clean, err := endsWithNewline(path)
	if err != nil {
		return err
	}
	if widened || existing.Skipped > 0 || !clean {
		existing.Rows = append(existing.Rows, t.Rows...)
		return writeFile(path, existing)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open table for append %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	for _, row := range t.Rows {
		if err := w.Write(project(row, existing.Columns)); err != nil {
			f.Close()
			return fmt.Errorf("append row %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush table %s: %w", path, err)
	}
	return f.Close()
}

// endsWithNewline reports whether the file's last byte terminates a record.
func endsWithNewline(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open table %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat table %s: %w", path, err)
	}
	if info.Size() == 0 {
		return true, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("read table tail %s: %w", path, err)
	}
	return last[0] == '\n', nil
}

// OverwriteTable replaces the file at path with t. The previous content is discarded entirely.
func OverwriteTable(path string, t *Table) error {
	start := time.Now()
	unlock := lockPath(path)
	defer unlock()

	err := writeFile(path, t)
	recordWrite("overwrite", start, err)
	return err
}

// writeFile writes the whole table to a temp file next to path and renames it into place.
func writeFile(path string, t *Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(t.Columns); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range t.Rows {
		if err := w.Write(project(row, t.Columns)); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp table: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace table %s: %w", path, err)
	}
	return nil
}

func project(row Row, columns []string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = row[col]
	}
	return out
}

// sortedKeys returns the row's keys: known columns first in header order, then the rest sorted.
func sortedKeys(row Row, known []string) []string {
	keys := make([]string, 0, len(row))
	seen := make(map[string]bool, len(row))
	for _, c := range known {
		if _, ok := row[c]; ok {
			keys = append(keys, c)
			seen[c] = true
		}
	}
	var extra []string
	for k := range row {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

func recordWrite(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	observability.PersistWritesTotal.WithLabelValues(op, result).Inc()
	observability.PersistWriteDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
