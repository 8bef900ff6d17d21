package flatfiles

import (
	"strconv"
	"time"

	"github.com/quantfeed/flatfiles/internal/types"
	"github.com/quantfeed/flatfiles/pkg/errors"
)

// TimestampColumn is the name of the derived exchange-local timestamp column.
const TimestampColumn = "timestamp"

// exchangeTimezone is the zone the derived timestamp column is converted to.
const exchangeTimezone = "America/New_York"

// CleanFunc derives columns on a raw table in place.
type CleanFunc func(table *types.Table) error

type cleanKey struct {
	market   Market
	endpoint Endpoint
}

// cleaners maps each supported (market, endpoint) pair to its normalization.
// Trades for options carry their event time in sip_timestamp; day and minute
// aggregates for both markets carry the bar open in window_start. Pairs not
// listed here fail loudly on Clean.
var cleaners = map[cleanKey]CleanFunc{
	{MarketOptions, EndpointTrades}:  deriveTimestamp("sip_timestamp"),
	{MarketOptions, EndpointDay}:     deriveTimestamp("window_start"),
	{MarketOptions, EndpointMinutes}: deriveTimestamp("window_start"),
	{MarketStocks, EndpointDay}:      deriveTimestamp("window_start"),
	{MarketStocks, EndpointMinutes}:  deriveTimestamp("window_start"),
}

var exchangeLocation *time.Location

func init() {
	loc, err := time.LoadLocation(exchangeTimezone)
	if err != nil {
		panic("flatfiles: cannot load exchange timezone: " + err.Error())
	}

	exchangeLocation = loc
}

// CanClean reports whether a normalization is registered for the pair.
func CanClean(market Market, endpoint Endpoint) bool {
	_, ok := cleaners[cleanKey{market, endpoint}]

	return ok
}

// Clean applies the registered normalization for (market, endpoint) to the
// table: the epoch-nanosecond source column is interpreted as UTC and
// converted to the exchange-local zone, appended as a new timestamp column.
// The source column is retained. An unregistered pair is an error.
func Clean(market Market, endpoint Endpoint, table *types.Table) error {
	clean, ok := cleaners[cleanKey{market, endpoint}]
	if !ok {
		return errors.Newf(errors.ErrCodeCleanerNotFound,
			"no cleaner registered for market %s endpoint %s", market.Name(), endpoint.Name())
	}

	return clean(table)
}

func deriveTimestamp(epochColumn string) CleanFunc {
	return func(table *types.Table) error {
		epochs, err := table.Column(epochColumn)
		if err != nil {
			return err
		}

		timestamps := make([]string, len(epochs))

		for i, raw := range epochs {
			ns, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return errors.Wrapf(errors.ErrCodeInvalidEpoch, err,
					"column %s row %d is not an epoch-nanosecond integer", epochColumn, i)
			}

			timestamps[i] = time.Unix(0, ns).UTC().In(exchangeLocation).Format(time.RFC3339Nano)
		}

		return table.AddColumn(TimestampColumn, timestamps)
	}
}
