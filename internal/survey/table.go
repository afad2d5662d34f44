package survey

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Table is an ordered set of survey records sharing one column schema.
// Numeric cells are finite or NaN; text cells are free-form strings.
type Table struct {
	columns []string
	numeric map[string][]float64
	text    map[string][]string
	rows    int
}

// Record is one row of a Table.
type Record struct {
	Numeric map[string]float64
	Text    map[string]string
}

// Value returns the numeric field and whether it is present (finite).
func (r Record) Value(col string) (float64, bool) {
	v, ok := r.Numeric[col]
	if !ok || math.IsNaN(v) {
		return math.NaN(), false
	}
	return v, true
}

// NewTable returns an empty table with n rows and no columns.
func NewTable(n int) *Table {
	return &Table{numeric: map[string][]float64{}, text: map[string][]string{}, rows: n}
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Has reports whether the column exists.
func (t *Table) Has(col string) bool {
	if _, ok := t.numeric[col]; ok {
		return true
	}
	_, ok := t.text[col]
	return ok
}

// Float returns the numeric column, or nil when absent or non-numeric.
func (t *Table) Float(col string) []float64 { return t.numeric[col] }

// Text returns the text column, or nil when absent or numeric.
func (t *Table) Text(col string) []string { return t.text[col] }

// SetFloat adds or replaces a numeric column. vals must have Len() entries;
// non-finite values are stored as NaN.
func (t *Table) SetFloat(col string, vals []float64) {
	if len(vals) != t.rows {
		panic(fmt.Sprintf("survey: column %s has %d values, table has %d rows", col, len(vals), t.rows))
	}
	for i, v := range vals {
		if math.IsInf(v, 0) {
			vals[i] = math.NaN()
		}
	}
	if !t.Has(col) {
		t.columns = append(t.columns, col)
	}
	delete(t.text, col)
	t.numeric[col] = vals
}

// SetText adds or replaces a text column.
func (t *Table) SetText(col string, vals []string) {
	if len(vals) != t.rows {
		panic(fmt.Sprintf("survey: column %s has %d values, table has %d rows", col, len(vals), t.rows))
	}
	if !t.Has(col) {
		t.columns = append(t.columns, col)
	}
	delete(t.numeric, col)
	t.text[col] = vals
}

// EnsureFloat returns the numeric column, synthesizing an all-NaN column when missing.
func (t *Table) EnsureFloat(col string) []float64 {
	if v, ok := t.numeric[col]; ok {
		return v
	}
	vals := nanSlice(t.rows)
	t.SetFloat(col, vals)
	return vals
}

// Record returns row i.
func (t *Table) Record(i int) Record {
	r := Record{Numeric: make(map[string]float64, len(t.numeric)), Text: make(map[string]string, len(t.text))}
	for c, v := range t.numeric {
		r.Numeric[c] = v[i]
	}
	for c, v := range t.text {
		r.Text[c] = v[i]
	}
	return r
}

// Records returns all rows.
func (t *Table) Records() []Record {
	out := make([]Record, t.rows)
	for i := range out {
		out[i] = t.Record(i)
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := NewTable(t.rows)
	c.columns = t.Columns()
	for k, v := range t.numeric {
		c.numeric[k] = append([]float64(nil), v...)
	}
	for k, v := range t.text {
		c.text[k] = append([]string(nil), v...)
	}
	return c
}

// WriteCSV writes the canonical comma-delimited form: lowercase headers, plain
// decimal numbers and empty cells for NaN. Normalizing the output again yields
// the same table.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(t.columns))
	for i := 0; i < t.rows; i++ {
		for j, c := range t.columns {
			if v, ok := t.numeric[c]; ok {
				row[j] = formatFloat(v[i])
				continue
			}
			row[j] = t.text[c][i]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Demo returns the demonstration table shown before any upload.
func Demo() *Table {
	t := NewTable(6)
	t.SetText(ColDistrict, []string{"Amathole", "BCM", "Chris Hani", "Amathole", "BCM", "Chris Hani"})
	t.SetText(ColBoreholeType, []string{"Production", "Production", "Production", "Domestic", "Domestic", "Domestic"})
	t.SetFloat(ColDepth, []float64{120, 110, 125, 60, 55, 65})
	t.SetFloat(ColYield, []float64{5.2, 4.8, 6.1, 1.8, 2.1, 2.3})
	t.SetFloat(ColCost, []float64{7285, 7200, 7350, 3723, 3700, 3740})
	return t
}
