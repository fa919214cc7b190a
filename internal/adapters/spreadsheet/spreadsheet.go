// Package spreadsheet reads uploaded .xlsx, .xls and .csv files into string rows
// and writes report workbooks.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// maxXLSRows bounds legacy workbook reads.
const maxXLSRows = 100000

// Errors
var (
	ErrUnsupportedFormat = errors.New("file must be .xlsx, .xls or .csv")
	ErrNoWorksheet       = errors.New("no worksheet found")
	ErrMultipleSheets    = errors.New("multiple worksheets found; please upload a file with a single sheet")
	ErrEmptySheet        = errors.New("worksheet is empty")
	ErrTooLarge          = errors.New("file is too large")
)

// ReadRows returns every row of the first worksheet (or the CSV body), header included.
// The format is chosen from the file extension.
// PRE: maxBytes > 0
// POST: len(rows) > 0 on success
func ReadRows(r io.Reader, filename string, maxBytes int64) ([][]string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		rows, err = readXLSX(data)
	case ".xls":
		rows, err = readXLS(data)
	case ".csv":
		rows, err = readCSV(data)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}
	return rows, nil
}

func readXLSX(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return nil, ErrNoWorksheet
	}
	return file.GetRows(sheetName)
}

func readXLS(data []byte) ([][]string, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	switch {
	case workbook.NumSheets() == 0:
		return nil, ErrNoWorksheet
	case workbook.NumSheets() > 1:
		return nil, ErrMultipleSheets
	}
	return workbook.ReadAllCells(maxXLSRows), nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// NormalizeHeader lower-cases a header and drops spaces and underscores,
// so "Assigned To", "assigned_to" and "ASSIGNEDTO" all match.
func NormalizeHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	return strings.NewReplacer(" ", "", "_", "", "\u00a0", "").Replace(h)
}

// HeaderIndex maps normalized header names to column positions.
// The first occurrence of a repeated header wins.
func HeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := NormalizeHeader(h)
		if key == "" {
			continue
		}
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	return idx
}

// Cell returns the trimmed value at idx, or "" when idx is out of range.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// IsBlank reports whether every cell in row is empty after trimming.
func IsBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
