package flatfiles

import (
	"fmt"

	"github.com/moznion/go-optional"

	"github.com/quantfeed/flatfiles/pkg/errors"
)

// FormatYear validates a year for key construction. Keys only exist for years
// 2000 through 2099.
func FormatYear(year int) (int, error) {
	if year < 2000 || year >= 2100 {
		return 0, errors.Newf(errors.ErrCodeYearOutOfRange, "year must be between 2000 and 2099 inclusive, got %d", year)
	}

	return year, nil
}

// FormatMonth validates a month and zero-pads it to width 2.
func FormatMonth(month int) (string, error) {
	if month < 1 || month > 12 {
		return "", errors.Newf(errors.ErrCodeMonthOutOfRange, "month must be between 1 and 12 inclusive, got %d", month)
	}

	return fmt.Sprintf("%02d", month), nil
}

// FormatDay validates a day-of-month and zero-pads it to width 2.
// The day is not cross-checked against the month length; a day that does not
// exist in the month resolves to a key with no object behind it.
func FormatDay(day int) (string, error) {
	if day < 1 || day > 31 {
		return "", errors.Newf(errors.ErrCodeDayOutOfRange, "day must be between 1 and 31 inclusive, got %d", day)
	}

	return fmt.Sprintf("%02d", day), nil
}

// BuildPrefix builds the listing prefix for a (market, endpoint) pair,
// optionally narrowed to a year or a year and month. A month without a year is
// a configuration error.
func BuildPrefix(market Market, endpoint Endpoint, year optional.Option[int], month optional.Option[int]) (string, error) {
	prefix := fmt.Sprintf("%s/%s", market, endpoint)

	if year.IsNone() {
		if month.IsSome() {
			return "", errors.New(errors.ErrCodeMonthWithoutYear, "month cannot come without a year")
		}

		return prefix, nil
	}

	y, err := FormatYear(year.Unwrap())
	if err != nil {
		return "", err
	}

	if month.IsNone() {
		return fmt.Sprintf("%s/%d", prefix, y), nil
	}

	m, err := FormatMonth(month.Unwrap())
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%d/%s", prefix, y, m), nil
}

// BuildKey builds the object key identifying one calendar day's flat file:
// {market}/{endpoint}/{year}/{month}/{year}-{month}-{day}.csv.gz
func BuildKey(market Market, endpoint Endpoint, year, month, day int) (string, error) {
	y, err := FormatYear(year)
	if err != nil {
		return "", err
	}

	m, err := FormatMonth(month)
	if err != nil {
		return "", err
	}

	d, err := FormatDay(day)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s/%d/%s/%d-%s-%s.csv.gz", market, endpoint, y, m, y, m, d), nil
}
