// Package types holds the tabular data structures shared by the fetcher,
// cleaner, and writers.
package types

import (
	"encoding/csv"
	"io"

	"github.com/quantfeed/flatfiles/pkg/errors"
)

// Table is the parsed content of one flat file: a header row naming the
// columns and the record rows as strings, exactly as they appear in the CSV.
// Typed interpretation (epoch columns, numeric columns) is left to the
// cleaner and the parquet writer.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// NewTable builds a table from a header and rows. Every row must have exactly
// one value per column.
func NewTable(columns []string, rows [][]string) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		index[name] = i
	}

	for _, row := range rows {
		if len(row) != len(columns) {
			return nil, errors.Newf(errors.ErrCodeSchemaMismatch,
				"row has %d values, expected %d", len(row), len(columns))
		}
	}

	return &Table{
		columns: columns,
		index:   index,
		rows:    rows,
	}, nil
}

// ParseCSV reads delimited text into a table. The first record is the header.
func ParseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParseFailed, "failed to parse csv", err)
	}

	if len(records) == 0 {
		return nil, errors.New(errors.ErrCodeParseFailed, "csv has no header row")
	}

	return NewTable(records[0], records[1:])
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return t.columns
}

// NumRows returns the number of record rows.
func (t *Table) NumRows() int {
	return len(t.rows)
}

// Row returns the i-th record row.
func (t *Table) Row(i int) []string {
	return t.rows[i]
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]

	return ok
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]string, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeMissingColumn, "no column named %s", name)
	}

	values := make([]string, len(t.rows))
	for r, row := range t.rows {
		values[r] = row[i]
	}

	return values, nil
}

// AddColumn appends a derived column. The value count must match the row count.
func (t *Table) AddColumn(name string, values []string) error {
	if t.HasColumn(name) {
		return errors.Newf(errors.ErrCodeSchemaMismatch, "column %s already exists", name)
	}

	if len(values) != len(t.rows) {
		return errors.Newf(errors.ErrCodeSchemaMismatch,
			"column %s has %d values, expected %d", name, len(values), len(t.rows))
	}

	t.index[name] = len(t.columns)
	t.columns = append(t.columns, name)

	for r := range t.rows {
		t.rows[r] = append(t.rows[r], values[r])
	}

	return nil
}

// Concat concatenates tables in the given order. All tables must share the
// schema of the first. Concatenating zero tables is an error; callers that
// may legitimately end up with nothing should check before calling.
func Concat(tables []*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyResult, "cannot concatenate zero tables")
	}

	first := tables[0]

	rows := make([][]string, 0, totalRows(tables))
	for _, table := range tables {
		if !sameColumns(first.columns, table.columns) {
			return nil, errors.Newf(errors.ErrCodeSchemaMismatch,
				"table columns %v do not match %v", table.columns, first.columns)
		}

		rows = append(rows, table.rows...)
	}

	return NewTable(first.columns, rows)
}

func totalRows(tables []*Table) int {
	n := 0
	for _, table := range tables {
		n += len(table.rows)
	}

	return n
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
