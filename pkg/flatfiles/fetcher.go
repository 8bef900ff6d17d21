package flatfiles

import (
	"compress/gzip"
	"context"

	"go.uber.org/zap"

	"github.com/quantfeed/flatfiles/internal/logger"
	"github.com/quantfeed/flatfiles/internal/types"
	"github.com/quantfeed/flatfiles/pkg/errors"
	"github.com/quantfeed/flatfiles/pkg/flatfiles/store"
)

// Fetcher retrieves flat files from an object store and parses them.
type Fetcher struct {
	store  store.ObjectStore
	logger *logger.Logger
}

// NewFetcher builds a fetcher over the given store.
func NewFetcher(objectStore store.ObjectStore, log *logger.Logger) *Fetcher {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Fetcher{
		store:  objectStore,
		logger: log,
	}
}

// List returns the keys under prefix, in storage order.
func (f *Fetcher) List(ctx context.Context, prefix string) ([]string, error) {
	f.logger.Info("listing objects", zap.String("prefix", prefix))

	return f.store.List(ctx, prefix)
}

// FetchOne downloads one object, decompresses it, and parses the CSV content.
// Not-found and forbidden outcomes surface as their typed errors so a range
// loop can skip the day; any other storage failure is fatal.
func (f *Fetcher) FetchOne(ctx context.Context, key string) (*types.Table, error) {
	body, err := f.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	gz, err := gzip.NewReader(body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDecompressFailed, err, "failed to decompress %s", key)
	}
	defer gz.Close()

	table, err := types.ParseCSV(gz)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeParseFailed, err, "failed to parse %s", key)
	}

	f.logger.Info("fetched object", zap.String("key", key), zap.Int("rows", table.NumRows()))

	return table, nil
}
