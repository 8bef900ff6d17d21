// Package flatfiles downloads Polygon flat files (pre-aggregated, date-partitioned
// compressed CSVs) from the flatfiles S3 bucket, parses them into in-memory
// tables, optionally derives exchange-local timestamps, and persists parquet
// partitions.
package flatfiles

import (
	"strings"

	"github.com/quantfeed/flatfiles/pkg/errors"
)

// Market is the asset-class namespace of the flat-files bucket.
type Market string

const (
	MarketOptions Market = "us_options_opra"
	MarketStocks  Market = "us_stocks_sip"
	MarketCrypto  Market = "global_crypto"
	MarketForex   Market = "global_forex"
	MarketIndex   Market = "index_placeholder"
)

// Endpoint is the data-granularity namespace of the flat-files bucket.
type Endpoint string

const (
	EndpointDay     Endpoint = "day_aggs_v1"
	EndpointMinutes Endpoint = "minute_aggs_v1"
	EndpointQuotes  Endpoint = "quotes_v1"
	EndpointTrades  Endpoint = "trades_v1"
)

var marketNames = map[string]Market{
	"options": MarketOptions,
	"stocks":  MarketStocks,
	"crypto":  MarketCrypto,
	"forex":   MarketForex,
	"index":   MarketIndex,
}

var endpointNames = map[string]Endpoint{
	"day":     EndpointDay,
	"minutes": EndpointMinutes,
	"quotes":  EndpointQuotes,
	"trades":  EndpointTrades,
}

// ParseMarket maps a user-facing market name (e.g. "options", "STOCKS") to its
// storage namespace.
func ParseMarket(name string) (Market, error) {
	market, ok := marketNames[strings.ToLower(name)]
	if !ok {
		return "", errors.Newf(errors.ErrCodeInvalidMarket, "invalid market value: %s", name)
	}

	return market, nil
}

// ParseEndpoint maps a user-facing endpoint name (e.g. "trades", "DAY") to its
// storage namespace.
func ParseEndpoint(name string) (Endpoint, error) {
	endpoint, ok := endpointNames[strings.ToLower(name)]
	if !ok {
		return "", errors.Newf(errors.ErrCodeInvalidEndpoint, "invalid endpoint value: %s", name)
	}

	return endpoint, nil
}

// Name returns the user-facing name of the market ("options", "stocks", ...).
func (m Market) Name() string {
	for name, market := range marketNames {
		if market == m {
			return name
		}
	}

	return string(m)
}

// Name returns the user-facing name of the endpoint ("day", "trades", ...).
func (e Endpoint) Name() string {
	for name, endpoint := range endpointNames {
		if endpoint == e {
			return name
		}
	}

	return string(e)
}
