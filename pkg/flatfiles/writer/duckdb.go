package writer

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/quantfeed/flatfiles/internal/types"
	"github.com/quantfeed/flatfiles/pkg/errors"
)

// timestampColumn is the derived exchange-local column; it is the only column
// stored as a timestamp with time zone rather than an inferred scalar type.
const timestampColumn = "timestamp"

// DuckDBWriter persists tables to a parquet file through an in-memory DuckDB
// database. The schema is inferred from the first table written; every
// subsequent table must match it.
type DuckDBWriter struct {
	db         *sql.DB
	tx         *sql.Tx
	stmt       *sql.Stmt
	columns    []string
	colTypes   []columnType
	outputPath string
}

type columnType int

const (
	typeBigint columnType = iota
	typeDouble
	typeVarchar
	typeTimestamptz
)

func (t columnType) ddl() string {
	switch t {
	case typeBigint:
		return "BIGINT"
	case typeDouble:
		return "DOUBLE"
	case typeTimestamptz:
		return "TIMESTAMPTZ"
	default:
		return "VARCHAR"
	}
}

// NewDuckDBWriter creates a new DuckDBWriter.
// outputPath is the path of the final parquet file.
func NewDuckDBWriter(outputPath string) TableWriter {
	return &DuckDBWriter{
		outputPath: outputPath,
	}
}

// Initialize opens the in-memory database connection. The table schema is
// created lazily on the first WriteTable call, once the columns are known.
func (w *DuckDBWriter) Initialize() (err error) {
	w.db, err = sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to open DuckDB connection", err)
	}

	return nil
}

// WriteTable persists the rows of one table inside a single transaction.
func (w *DuckDBWriter) WriteTable(table *types.Table) error {
	if w.db == nil {
		return errors.New(errors.ErrCodeWriterNotInitialized, "writer not initialized")
	}

	if w.stmt == nil {
		if err := w.createSchema(table); err != nil {
			return err
		}
	} else if !sameColumns(w.columns, table.Columns()) {
		return errors.Newf(errors.ErrCodeSchemaMismatch,
			"table columns %v do not match writer schema %v", table.Columns(), w.columns)
	}

	for i := 0; i < table.NumRows(); i++ {
		args, err := w.rowArgs(table.Row(i))
		if err != nil {
			return err
		}

		if _, err := w.stmt.Exec(args...); err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert row", err)
		}
	}

	return nil
}

// Finalize commits the transaction and exports the data to a parquet file
// with snappy block compression.
func (w *DuckDBWriter) Finalize() (outputPath string, err error) {
	if w.tx == nil {
		return "", errors.New(errors.ErrCodeWriterNotInitialized, "writer has no data to finalize")
	}

	if err = w.tx.Commit(); err != nil {
		w.tx.Rollback()

		return "", errors.Wrap(errors.ErrCodeWriteFailed, "failed to commit transaction", err)
	}

	w.tx = nil

	_, err = w.db.Exec(fmt.Sprintf(`COPY flat_file TO '%s' (FORMAT PARQUET, CODEC 'SNAPPY')`, w.outputPath))
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeExportFailed, err, "failed to export parquet to %s", w.outputPath)
	}

	return w.outputPath, nil
}

// Close cleans up resources used by the writer.
func (w *DuckDBWriter) Close() error {
	var closeErrs []string

	if w.stmt != nil {
		if err := w.stmt.Close(); err != nil {
			closeErrs = append(closeErrs, fmt.Sprintf("failed to close statement: %v", err))
		}

		w.stmt = nil
	}

	// If the transaction is still active (Finalize not called or failed), roll back
	if w.tx != nil {
		if err := w.tx.Rollback(); err != nil {
			closeErrs = append(closeErrs, fmt.Sprintf("failed to rollback transaction: %v", err))
		}

		w.tx = nil
	}

	if w.db != nil {
		if err := w.db.Close(); err != nil {
			closeErrs = append(closeErrs, fmt.Sprintf("failed to close db connection: %v", err))
		}

		w.db = nil
	}

	if len(closeErrs) > 0 {
		return errors.Newf(errors.ErrCodeWriteFailed, "errors occurred during close: %s", strings.Join(closeErrs, "; "))
	}

	return nil
}

// GetOutputPath returns the configured output file path.
func (w *DuckDBWriter) GetOutputPath() string {
	return w.outputPath
}

func (w *DuckDBWriter) createSchema(table *types.Table) error {
	w.columns = append([]string(nil), table.Columns()...)
	w.colTypes = inferColumnTypes(table)

	ddl := make([]string, len(w.columns))
	placeholders := make([]string, len(w.columns))

	for i, name := range w.columns {
		ddl[i] = fmt.Sprintf(`"%s" %s`, name, w.colTypes[i].ddl())
		placeholders[i] = "?"
	}

	if _, err := w.db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS flat_file (%s)`, strings.Join(ddl, ", "))); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to create table", err)
	}

	tx, err := w.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to begin transaction", err)
	}

	w.tx = tx

	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO flat_file VALUES (%s)`, strings.Join(placeholders, ", ")))
	if err != nil {
		tx.Rollback()
		w.tx = nil

		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to prepare statement", err)
	}

	w.stmt = stmt

	return nil
}

func (w *DuckDBWriter) rowArgs(row []string) ([]any, error) {
	args := make([]any, len(row))

	for i, value := range row {
		if value == "" {
			args[i] = nil

			continue
		}

		switch w.colTypes[i] {
		case typeBigint:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeWriteFailed, err, "column %s value %q is not an integer", w.columns[i], value)
			}

			args[i] = n
		case typeDouble:
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeWriteFailed, err, "column %s value %q is not a number", w.columns[i], value)
			}

			args[i] = f
		case typeTimestamptz:
			ts, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeWriteFailed, err, "column %s value %q is not a timestamp", w.columns[i], value)
			}

			args[i] = ts
		default:
			args[i] = value
		}
	}

	return args, nil
}

// inferColumnTypes picks a storage type per column by scanning its values:
// all integers -> BIGINT, all numeric -> DOUBLE, otherwise VARCHAR. Empty
// values are nulls and do not influence the type.
func inferColumnTypes(table *types.Table) []columnType {
	columns := table.Columns()
	inferred := make([]columnType, len(columns))

	for i, name := range columns {
		if name == timestampColumn {
			inferred[i] = typeTimestamptz

			continue
		}

		inferred[i] = typeBigint

		for r := 0; r < table.NumRows(); r++ {
			value := table.Row(r)[i]
			if value == "" {
				continue
			}

			if inferred[i] == typeBigint {
				if _, err := strconv.ParseInt(value, 10, 64); err == nil {
					continue
				}

				inferred[i] = typeDouble
			}

			if inferred[i] == typeDouble {
				if _, err := strconv.ParseFloat(value, 64); err == nil {
					continue
				}

				inferred[i] = typeVarchar
			}

			if inferred[i] == typeVarchar {
				break
			}
		}
	}

	return inferred
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
