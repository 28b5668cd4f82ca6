package resultview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Export filenames.
const (
	CSVFilename  = "query_results.csv"
	JSONFilename = "query_results.json"
)

// ExportCSV serializes every row in the current order, header first. Every cell is
// quoted and nil cells are empty.
func (v *View) ExportCSV() []byte {
	var buf bytes.Buffer
	writeCSVLine(&buf, v.result.Columns)
	cells := make([]string, len(v.result.Columns))
	for _, row := range v.Rows() {
		for i, col := range v.result.Columns {
			cells[i] = CellText(row[col])
		}
		writeCSVLine(&buf, cells)
	}
	return buf.Bytes()
}

// encoding/csv only quotes fields that need it.
func writeCSVLine(buf *bytes.Buffer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(c, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteByte('\n')
}

// CellText renders one cell the way exports write it. NULL is empty.
func CellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}

// ExportJSON serializes every row in the current order as an array of objects whose
// keys follow the declared column order. nil cells are null.
func (v *View) ExportJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range v.Rows() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, col := range v.result.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(col)
			val, err := json.Marshal(row[col])
			if err != nil {
				return nil, fmt.Errorf("encode column %q of row %d: %w", col, i, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent export: %w", err)
	}
	return out.Bytes(), nil
}
