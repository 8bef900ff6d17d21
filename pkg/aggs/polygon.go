// Package aggs downloads aggregate bars over the Polygon REST API and shapes
// them like flat-file day/minute aggregates, so the same cleaning and parquet
// writing applies to both sources.
package aggs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/quantfeed/flatfiles/internal/logger"
	"github.com/quantfeed/flatfiles/internal/types"
	"github.com/quantfeed/flatfiles/pkg/errors"
)

// PolygonAggsIterator is the iteration surface of a ListAggs call.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient is the subset of the Polygon REST client used by the
// provider. It exists so tests can substitute a mock.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

type polygonAPIAdapter struct {
	client *polygon.Client
}

func (a *polygonAPIAdapter) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return a.client.ListAggs(ctx, params, options...)
}

// aggColumns matches the column layout of day/minute flat files, so cleaned
// aggregate tables carry their bar-open time in window_start like everything
// else in this repository.
var aggColumns = []string{"ticker", "volume", "open", "close", "high", "low", "window_start", "transactions"}

// PolygonProvider fetches aggregate bars over REST.
type PolygonProvider struct {
	api    PolygonAPIClient
	logger *logger.Logger
}

// NewPolygonProvider builds a provider over the Polygon REST API.
func NewPolygonProvider(apiKey string, log *logger.Logger) (*PolygonProvider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingCredentials, "apiKey is required")
	}

	return NewPolygonProviderWithAPI(&polygonAPIAdapter{client: polygon.New(apiKey)}, log), nil
}

// NewPolygonProviderWithAPI builds a provider over an existing API client.
// Used by tests.
func NewPolygonProviderWithAPI(api PolygonAPIClient, log *logger.Logger) *PolygonProvider {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &PolygonProvider{
		api:    api,
		logger: log,
	}
}

// ParseTimespan maps a user-facing timespan name to the REST model value.
func ParseTimespan(name string) (models.Timespan, error) {
	switch name {
	case "second":
		return models.Second, nil
	case "minute":
		return models.Minute, nil
	case "hour":
		return models.Hour, nil
	case "day":
		return models.Day, nil
	case "week":
		return models.Week, nil
	case "month":
		return models.Month, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidTimespan, "invalid timespan value: %s", name)
	}
}

// Fetch downloads all aggregate bars for the ticker and date range and
// returns them as one table in time order.
func (p *PolygonProvider) Fetch(ctx context.Context, ticker string, startDate, endDate time.Time, multiplier int, timespan models.Timespan) (*types.Table, error) {
	totalDays := int(endDate.Sub(startDate).Hours()/24) + 1

	bar := progressbar.NewOptions(totalDays,
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", ticker)),
		progressbar.OptionShowCount())

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(startDate),
		To:         models.Millis(endDate),
	}.WithLimit(50000)

	iter := p.api.ListAggs(ctx, params)

	var rows [][]string

	for iter.Next() {
		agg := iter.Item()
		rows = append(rows, aggRow(ticker, agg))

		if len(rows)%1000 == 0 {
			daysElapsed := int(time.Time(agg.Timestamp).Sub(startDate).Hours() / 24)
			bar.Set(daysElapsed)
		}
	}

	if iter.Err() != nil {
		return nil, errors.Wrapf(errors.ErrCodeProviderFetchFailed, iter.Err(), "error iterating aggregates for %s", ticker)
	}

	bar.Finish()
	p.logger.Info("finished downloading aggregates",
		zap.String("ticker", ticker), zap.Int("bars", len(rows)))

	if len(rows) == 0 {
		return nil, nil
	}

	return types.NewTable(aggColumns, rows)
}

func aggRow(ticker string, agg models.Agg) []string {
	return []string{
		ticker,
		strconv.FormatFloat(agg.Volume, 'f', -1, 64),
		strconv.FormatFloat(agg.Open, 'f', -1, 64),
		strconv.FormatFloat(agg.Close, 'f', -1, 64),
		strconv.FormatFloat(agg.High, 'f', -1, 64),
		strconv.FormatFloat(agg.Low, 'f', -1, 64),
		strconv.FormatInt(time.Time(agg.Timestamp).UnixNano(), 10),
		strconv.FormatInt(int64(agg.Transactions), 10),
	}
}
