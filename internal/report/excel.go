package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// SheetWriter writes rows into a workbook one sheet at a time.
type SheetWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []interface{}) error
	Save(w io.Writer) error
	Close() error
}

// ExcelizeWriter implements SheetWriter using excelize library.
type ExcelizeWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

// NewExcelizeWriter creates a new Excel writer.
func NewExcelizeWriter() SheetWriter {
	return &ExcelizeWriter{
		file: excelize.NewFile(),
	}
}

// AddSheet adds a new sheet with the given name.
func (w *ExcelizeWriter) AddSheet(name string) error {
	// Excel limit
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes bold column headers to the current sheet.
func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.WriteRow(row); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}
	return nil
}

// WriteRow writes a data row to the current sheet.
func (w *ExcelizeWriter) WriteRow(row []interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return err
	}
	w.currentRow++
	return nil
}

func (w *ExcelizeWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *ExcelizeWriter) Close() error {
	return w.file.Close()
}

// ExcelExporter writes one workbook per month with a sheet per restaurant.
type ExcelExporter struct {
	dir       string
	newWriter func() SheetWriter
}

// NewExcelExporter creates an exporter writing into dir. newWriter may be nil.
func NewExcelExporter(dir string, newWriter func() SheetWriter) *ExcelExporter {
	if newWriter == nil {
		newWriter = NewExcelizeWriter
	}
	return &ExcelExporter{dir: dir, newWriter: newWriter}
}

func (e *ExcelExporter) Name() string { return "excel" }

// Path is where the workbook for month is written.
func (e *ExcelExporter) Path(month string) string {
	return filepath.Join(e.dir, Filename(month))
}

func (e *ExcelExporter) Export(_ context.Context, month string, rows []WaiterRow) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	w := e.newWriter()
	defer w.Close()

	current := ""
	for _, row := range rows {
		if row.RestaurantID != current {
			current = row.RestaurantID
			if err := w.AddSheet(current); err != nil {
				return err
			}
			if err := w.WriteHeader(Columns); err != nil {
				return err
			}
		}
		if err := w.WriteRow(rowValues(row)); err != nil {
			return fmt.Errorf("write row %s: %w", row.WaiterID, err)
		}
	}
	if current == "" {
		if err := w.AddSheet(month); err != nil {
			return err
		}
		if err := w.WriteHeader(Columns); err != nil {
			return err
		}
	}

	f, err := os.Create(e.Path(month))
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	defer f.Close()
	if err := w.Save(f); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
