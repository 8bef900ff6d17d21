package flatfiles

import (
	"iter"
	"time"

	"github.com/araddon/dateparse"
	"github.com/moznion/go-optional"

	"github.com/quantfeed/flatfiles/pkg/errors"
)

const strictDateLayout = "20060102"

// ParseDate parses a date argument. Strict YYYYMMDD is tried first; anything
// else falls back to lenient natural-language parsing ("2024-02-01",
// "Feb 1, 2024", ...). Only the calendar date is kept.
func ParseDate(text string) (time.Time, error) {
	if parsed, err := time.Parse(strictDateLayout, text); err == nil {
		return parsed, nil
	}

	parsed, err := dateparse.ParseAny(text)
	if err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrCodeUnparsableDate, err, "cannot parse date: %s", text)
	}

	return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), nil
}

// BusinessDays produces the ordered sequence of business days (Mon-Fri) from
// start to end inclusive. The end date defaults to yesterday when absent.
// Market holidays are not skipped; those days simply have no object behind
// their key.
//
// The returned sequence is restartable: ranging over it twice yields the same
// days.
func BusinessDays(start time.Time, end optional.Option[time.Time]) (iter.Seq[time.Time], error) {
	last := end.TakeOr(time.Now().UTC().AddDate(0, 0, -1))

	start = truncateToDay(start)
	last = truncateToDay(last)

	if start.After(last) {
		return nil, errors.Newf(errors.ErrCodeInvalidDateRange,
			"start date %s is after end date %s", start.Format(time.DateOnly), last.Format(time.DateOnly))
	}

	return func(yield func(time.Time) bool) {
		for day := start; !day.After(last); day = day.AddDate(0, 0, 1) {
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				continue
			}

			if !yield(day) {
				return
			}
		}
	}, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
