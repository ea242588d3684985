package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// decodeCSV reads a CSV file whose first row is the header.
func decodeCSV(path string) (interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("decode %s: %w", path, ErrInvalidUTF8)
	}

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return map[string]interface{}{
		"source": filepath.Base(path),
		"rows":   rowsToRecords(rows),
	}, nil
}

// decodeXLSX converts every sheet of a workbook into row objects keyed by the
// sheet's header row.
func decodeXLSX(path string) (interface{}, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheets := make(map[string]interface{})
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q of %s: %w", name, path, err)
		}
		sheets[name] = rowsToRecords(rows)
	}
	return map[string]interface{}{
		"source": filepath.Base(path),
		"sheets": sheets,
	}, nil
}

// rowsToRecords maps each data row onto the header.  Short rows get empty
// strings, cells past the header are keyed column_<n> (1-based).
func rowsToRecords(rows [][]string) []map[string]string {
	records := make([]map[string]string, 0)
	if len(rows) == 0 {
		return records
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		header[i] = h
	}
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rec := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(row) {
				rec[key] = row[i]
			} else {
				rec[key] = ""
			}
		}
		for i := len(header); i < len(row); i++ {
			rec[fmt.Sprintf("column_%d", i+1)] = row[i]
		}
		records = append(records, rec)
	}
	return records
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
