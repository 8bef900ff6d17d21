package writer

import (
	"github.com/quantfeed/flatfiles/internal/types"
)

// TableWriter defines the interface for persisting parsed flat-file tables.
type TableWriter interface {
	// Initialize sets up the writer, potentially creating tables or files.
	Initialize() error
	// WriteTable persists the rows of one table. All tables written through
	// one writer must share a schema.
	WriteTable(table *types.Table) error
	// Finalize completes the writing process (e.g., commits transactions, exports files).
	Finalize() (outputPath string, err error)
	// Close releases any resources held by the writer.
	Close() error
	// GetOutputPath returns the configured output file path.
	GetOutputPath() string
}
