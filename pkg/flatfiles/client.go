package flatfiles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/quantfeed/flatfiles/internal/logger"
	"github.com/quantfeed/flatfiles/internal/types"
	"github.com/quantfeed/flatfiles/pkg/errors"
	"github.com/quantfeed/flatfiles/pkg/flatfiles/store"
	"github.com/quantfeed/flatfiles/pkg/flatfiles/writer"
)

// Config holds the client configuration. Explicit values take precedence;
// empty fields fall back to the environment (POLYGON_MARKET, POLYGON_ENDPOINT,
// ACCESS_KEY, SECRET_KEY, DATADIR).
type Config struct {
	Market    string `validate:"required"`
	Endpoint  string `validate:"required"`
	AccessKey string `validate:"required"`
	SecretKey string `validate:"required"`
	DataDir   string
}

// WithEnvFallback fills empty fields from the environment and defaults the
// data directory to the current directory.
func (c Config) WithEnvFallback() Config {
	if c.Market == "" {
		c.Market = os.Getenv("POLYGON_MARKET")
	}

	if c.Endpoint == "" {
		c.Endpoint = os.Getenv("POLYGON_ENDPOINT")
	}

	if c.AccessKey == "" {
		c.AccessKey = os.Getenv("ACCESS_KEY")
	}

	if c.SecretKey == "" {
		c.SecretKey = os.Getenv("SECRET_KEY")
	}

	if c.DataDir == "" {
		c.DataDir = os.Getenv("DATADIR")
	}

	if c.DataDir == "" {
		c.DataDir = "."
	}

	return c
}

// DownloadOptions control what happens to each fetched table.
type DownloadOptions struct {
	// Clean derives the exchange-local timestamp column on each table.
	Clean bool
	// Partition writes one parquet file per fetched day.
	Partition bool
	// SaveCombined writes the concatenated result to a single parquet file.
	SaveCombined bool
}

// Client drives the download pipeline: enumerate days or listed keys, fetch
// each flat file, optionally clean it, optionally persist it, and return the
// combined result. Processing is sequential; each day completes before the
// next begins.
type Client struct {
	market   Market
	endpoint Endpoint
	dataDir  string
	fetcher  *Fetcher
	logger   *logger.Logger
}

// NewClient validates the configuration and builds a client over the Polygon
// flat-files bucket.
func NewClient(ctx context.Context, config Config, log *logger.Logger) (*Client, error) {
	config = config.WithEnvFallback()

	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	objectStore, err := store.NewS3Store(ctx, config.AccessKey, config.SecretKey)
	if err != nil {
		return nil, err
	}

	return NewClientWithStore(config, objectStore, log)
}

// NewClientWithStore builds a client over an existing object store. Used by
// tests and callers that manage their own storage session.
func NewClientWithStore(config Config, objectStore store.ObjectStore, log *logger.Logger) (*Client, error) {
	market, err := ParseMarket(config.Market)
	if err != nil {
		return nil, err
	}

	endpoint, err := ParseEndpoint(config.Endpoint)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}

	return &Client{
		market:   market,
		endpoint: endpoint,
		dataDir:  dataDir,
		fetcher:  NewFetcher(objectStore, log),
		logger:   log,
	}, nil
}

// Market returns the configured market.
func (c *Client) Market() Market {
	return c.market
}

// Endpoint returns the configured endpoint.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// DownloadRange fetches every business day from start to end inclusive, in
// order. The end date defaults to yesterday when absent. Missing and
// forbidden days are skipped; any other storage failure aborts the remaining
// range. Returns the concatenated result, or nil when no day produced data.
func (c *Client) DownloadRange(ctx context.Context, start time.Time, end optional.Option[time.Time], opts DownloadOptions) (*types.Table, error) {
	days, err := BusinessDays(start, end)
	if err != nil {
		return nil, err
	}

	total := 0
	for range days {
		total++
	}

	log := c.logger.With(zap.String("download_id", uuid.NewString()))
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s/%s", c.market.Name(), c.endpoint.Name())),
		progressbar.OptionShowCount())

	var tables []*types.Table

	for day := range days {
		key, err := BuildKey(c.market, c.endpoint, day.Year(), int(day.Month()), day.Day())
		if err != nil {
			return nil, err
		}

		table, err := c.fetchAndProcess(ctx, key, day.Format(time.DateOnly), opts, log)
		if err != nil {
			return nil, err
		}

		if table != nil {
			tables = append(tables, table)
		}

		bar.Add(1)
	}

	bar.Finish()

	return c.combine(tables, opts, log)
}

// DownloadListing fetches every object under the (market, endpoint) prefix,
// optionally narrowed to a year or a year and month, in listing order.
func (c *Client) DownloadListing(ctx context.Context, year, month optional.Option[int], opts DownloadOptions) (*types.Table, error) {
	prefix, err := BuildPrefix(c.market, c.endpoint, year, month)
	if err != nil {
		return nil, err
	}

	keys, err := c.fetcher.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	log := c.logger.With(zap.String("download_id", uuid.NewString()))
	bar := progressbar.NewOptions(len(keys),
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", prefix)),
		progressbar.OptionShowCount())

	var tables []*types.Table

	for _, key := range keys {
		table, err := c.fetchAndProcess(ctx, key, stemOf(key), opts, log)
		if err != nil {
			return nil, err
		}

		if table != nil {
			tables = append(tables, table)
		}

		bar.Add(1)
	}

	bar.Finish()

	return c.combine(tables, opts, log)
}

// ListKeys returns the object keys under the (market, endpoint) prefix,
// optionally narrowed to a year or a year and month, without fetching them.
func (c *Client) ListKeys(ctx context.Context, year, month optional.Option[int]) ([]string, error) {
	prefix, err := BuildPrefix(c.market, c.endpoint, year, month)
	if err != nil {
		return nil, err
	}

	return c.fetcher.List(ctx, prefix)
}

// DownloadSingle fetches one day's flat file. Returns nil when the object
// does not exist or access to it is denied.
func (c *Client) DownloadSingle(ctx context.Context, year, month, day int, saveDisk bool) (*types.Table, error) {
	key, err := BuildKey(c.market, c.endpoint, year, month, day)
	if err != nil {
		return nil, err
	}

	opts := DownloadOptions{Partition: saveDisk}

	return c.fetchAndProcess(ctx, key, stemOf(key), opts, c.logger.Logger)
}

// fetchAndProcess runs one loop iteration: fetch the key, skip absent days,
// clean and partition when requested. A nil table with a nil error means the
// day was skipped.
func (c *Client) fetchAndProcess(ctx context.Context, key, date string, opts DownloadOptions, log *zap.Logger) (*types.Table, error) {
	table, err := c.fetcher.FetchOne(ctx, key)
	if err != nil {
		switch {
		case errors.HasCode(err, errors.ErrCodeObjectNotFound):
			log.Info("no flat file for key, skipping", zap.String("key", key))

			return nil, nil
		case errors.HasCode(err, errors.ErrCodeObjectForbidden):
			// A permissions problem looks like a missing day; keep it loud.
			log.Warn("access denied for key, skipping", zap.String("key", key))

			return nil, nil
		default:
			return nil, err
		}
	}

	if opts.Clean {
		if err := Clean(c.market, c.endpoint, table); err != nil {
			return nil, err
		}
	}

	if opts.Partition {
		path := filepath.Join(c.dataDir, c.market.Name(), date+".parquet")
		if err := c.writeParquet(table, path); err != nil {
			return nil, err
		}

		log.Info("saved partition", zap.String("path", path))
	}

	return table, nil
}

// combine applies the uniform empty-result policy: zero tables is a warning
// and an absent result, never an error.
func (c *Client) combine(tables []*types.Table, opts DownloadOptions, log *zap.Logger) (*types.Table, error) {
	if len(tables) == 0 {
		log.Warn("no data downloaded for requested range")

		return nil, nil
	}

	combined, err := types.Concat(tables)
	if err != nil {
		return nil, err
	}

	if opts.SaveCombined {
		path := filepath.Join(c.dataDir, c.market.Name(), c.endpoint.Name()+".parquet")
		if err := c.writeParquet(combined, path); err != nil {
			return nil, err
		}

		log.Info("saved combined result", zap.String("path", path), zap.Int("rows", combined.NumRows()))
	}

	return combined, nil
}

func (c *Client) writeParquet(table *types.Table, path string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to create directory for %s", path)
	}

	w := writer.NewDuckDBWriter(path)
	if err := w.Initialize(); err != nil {
		return err
	}

	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := w.WriteTable(table); err != nil {
		return err
	}

	if _, err := w.Finalize(); err != nil {
		return err
	}

	return nil
}

// stemOf returns the file stem of an object key: the last path segment with
// its extensions removed (".../2024-02-01.csv.gz" -> "2024-02-01").
func stemOf(key string) string {
	base := filepath.Base(key)
	for {
		ext := filepath.Ext(base)
		if ext == "" {
			return base
		}

		base = base[:len(base)-len(ext)]
	}
}
