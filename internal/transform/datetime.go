package transform

import (
	"fmt"
	"strings"
	"time"
)

const (
	isoUTCMillis = "2006-01-02T15:04:05.000Z"
	isoDate      = "2006-01-02"
	isoSeconds   = "2006-01-02T15:04:05Z"
	compactStamp = "20060102T150405"
)

// Accepted input layouts. Fractional seconds are accepted by time.Parse
// after the seconds field even when the layout omits them.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	isoDate,
}

// ParseDatetime parses an ISO-8601 date or date-time. Values without an
// offset are taken as UTC. The result is always in UTC.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported datetime %q", s)
}

func asTime(v any) (time.Time, error) {
	switch tv := v.(type) {
	case time.Time:
		return tv.UTC(), nil
	case string:
		return ParseDatetime(tv)
	}
	return time.Time{}, fmt.Errorf("expected a datetime string, got %T", v)
}

func datetimeConverters() []Converter {
	toMillis := func(v any) (any, error) {
		t, err := asTime(v)
		if err != nil {
			return nil, err
		}
		return t.UnixMilli(), nil
	}
	return []Converter{
		unary("datetime_to_timestamp_milliseconds", toMillis),
		unary("to_timestamp_milliseconds", toMillis),
		unary("to_iso_utc_datetime_from_milliseconds", func(v any) (any, error) {
			ms, err := asInt64(v)
			if err != nil {
				return nil, err
			}
			return time.UnixMilli(ms).UTC().Format(isoUTCMillis), nil
		}),
		unary("to_iso_utc_datetime", func(v any) (any, error) {
			t, err := asTime(v)
			if err != nil {
				return nil, err
			}
			return t.Format(isoUTCMillis), nil
		}),
		unary("to_iso_date", func(v any) (any, error) {
			t, err := asTime(v)
			if err != nil {
				return nil, err
			}
			return t.Format(isoDate), nil
		}),
	}
}
