package survey

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ParseError reports tabular input that could not be read with either delimiter.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse survey: %v", e.Err)
	}
	return fmt.Sprintf("parse survey %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var errEmpty = errors.New("empty input")

// Normalize reads a survey file (.csv or .xlsx) and returns the canonical table.
func Normalize(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()
	return NormalizeReader(path, f)
}

// NormalizeReader is Normalize for an already opened stream. name is used for
// format detection by extension and in error messages.
func NormalizeReader(name string, r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Path: name, Err: fmt.Errorf("read: %w", err)}
	}
	var rows [][]string
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		rows, err = readXLSX(raw)
	} else {
		rows, err = readDelimited(decodeText(raw))
	}
	if err != nil {
		return nil, &ParseError{Path: name, Err: err}
	}
	return fromRows(rows), nil
}

// decodeText strips a UTF-8 BOM and falls back to Windows-1252 for legacy exports.
func decodeText(b []byte) []byte {
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(b) {
		return b
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return b
	}
	return out
}

// readDelimited tries semicolon first and comma second.
func readDelimited(b []byte) ([][]string, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, errEmpty
	}
	rows, semiErr := readWith(b, ';')
	if semiErr == nil {
		return rows, nil
	}
	rows, commaErr := readWith(b, ',')
	if commaErr == nil {
		return rows, nil
	}
	return nil, errors.Join(
		fmt.Errorf("semicolon: %w", semiErr),
		fmt.Errorf("comma: %w", commaErr),
	)
}

func readWith(b []byte, delim rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(b))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errEmpty
	}
	if delim == ';' && len(rows[0]) == 1 && strings.Contains(rows[0][0], ",") {
		return nil, errors.New("single column header contains commas")
	}
	return rows, nil
}

// fromRows builds the canonical table from a header row plus data rows.
func fromRows(rows [][]string) *Table {
	header := rows[0]
	body := rows[1:]
	t := NewTable(len(body))

	seen := map[string]int{}
	for j, h := range header {
		name := CleanHeader(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", j+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}

		cells := make([]string, len(body))
		for i, row := range body {
			if j < len(row) {
				cells[i] = row[j]
			}
		}
		if IsNumeric(name) {
			t.SetFloat(name, coerceColumn(cells))
			continue
		}
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		t.SetText(name, cells)
	}

	derive(t)
	suppressNegative(t, ColDrawdown, ColSpecificCapacity)
	return t
}
