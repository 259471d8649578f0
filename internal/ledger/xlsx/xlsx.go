// Package xlsx keeps the ledger in a local Excel workbook. The file is
// reopened on every call so edits made in a spreadsheet program are seen
// by the next read.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"rapport/internal/ledger"
)

const DefaultSheet = "Ledger"

// Workbook is a ledger.Ledger backed by one sheet of an .xlsx file.
type Workbook struct {
	mu    sync.Mutex
	path  string
	sheet string
}

var _ ledger.Ledger = (*Workbook)(nil)

// Open returns a workbook ledger at path, creating the file, the sheet and
// the header row when they are missing.
func Open(path, sheet string, headers []string) (*Workbook, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("missing workbook path")
	}
	if strings.TrimSpace(sheet) == "" {
		sheet = DefaultSheet
	}
	w := &Workbook{path: path, sheet: sheet}
	if err := w.ensure(headers); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workbook) Path() string { return w.path }

func (w *Workbook) ensure(headers []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var f *excelize.File
	if _, err := os.Stat(w.path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
			return fmt.Errorf("create workbook directory: %w", err)
		}
		f = excelize.NewFile()
	} else {
		f, err = excelize.OpenFile(w.path)
		if err != nil {
			return fmt.Errorf("open workbook: %w", err)
		}
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(w.sheet)
	if err != nil {
		return fmt.Errorf("lookup sheet %q: %w", w.sheet, err)
	}
	if idx == -1 {
		if idx, err = f.NewSheet(w.sheet); err != nil {
			return fmt.Errorf("create sheet %q: %w", w.sheet, err)
		}
		f.SetActiveSheet(idx)
		// A fresh file comes with an empty default sheet.
		if w.sheet != "Sheet1" {
			if i, _ := f.GetSheetIndex("Sheet1"); i != -1 {
				if rows, _ := f.GetRows("Sheet1"); len(rows) == 0 {
					_ = f.DeleteSheet("Sheet1")
				}
			}
		}
	}

	rows, err := f.GetRows(w.sheet)
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", w.sheet, err)
	}
	if len(rows) == 0 && len(headers) > 0 {
		if err := writeRow(f, w.sheet, 1, headers); err != nil {
			return err
		}
	}
	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// AllRows reads every row of the sheet, headers first.
func (w *Workbook) AllRows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ledger.ErrUnavailable, err)
	}
	defer f.Close()

	rows, err := f.GetRows(w.sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ledger.ErrUnavailable, w.sheet, err)
	}
	for i := range rows {
		for j := range rows[i] {
			rows[i][j] = strings.TrimSpace(rows[i][j])
		}
	}
	return rows, nil
}

// AppendRow writes cells below the last used row. Values are written as
// strings so comma decimals keep their ledger format.
func (w *Workbook) AppendRow(ctx context.Context, cells []string) error {
	if len(cells) == 0 {
		return errors.New("empty row")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(w.sheet)
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", w.sheet, err)
	}
	if err := writeRow(f, w.sheet, len(rows)+1, cells); err != nil {
		return err
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNo int, cells []string) error {
	start, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, start, &values); err != nil {
		return fmt.Errorf("write row %d: %w", rowNo, err)
	}
	return nil
}
