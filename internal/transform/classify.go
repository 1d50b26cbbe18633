package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var corineIDRe = regexp.MustCompile(`_(clc|cha)(\d{4})_`)

type corinePeriod struct{ from, to int }

var corineChanges = []corinePeriod{{1990, 2000}, {2000, 2006}, {2006, 2012}, {2012, 2018}}

func corineCoverYear(year int) int {
	switch {
	case year < 1995:
		return 1990
	case year < 2003:
		return 2000
	case year < 2009:
		return 2006
	case year < 2015:
		return 2012
	}
	return 2018
}

func corineCover(year int) string { return fmt.Sprintf("Corine Land Cover %d", year) }

func corineChange(p corinePeriod) string {
	return fmt.Sprintf("Corine Land Change %d %d", p.from, p.to)
}

// CorineProductType picks the CORINE product covering [start, end]. A range
// within one year (or an inverted range) maps to a land cover inventory;
// otherwise the change period with the largest overlap wins, the earlier one
// on ties.
func CorineProductType(start, end time.Time) string {
	if start.Year() == end.Year() || start.After(end) {
		return corineCover(corineCoverYear(start.Year()))
	}
	best, bestOverlap := -1, time.Duration(0)
	for i, p := range corineChanges {
		from := time.Date(p.from, time.January, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(p.to, time.December, 31, 23, 59, 59, 0, time.UTC)
		lo, hi := start, end
		if from.After(lo) {
			lo = from
		}
		if to.Before(hi) {
			hi = to
		}
		if overlap := hi.Sub(lo); overlap > bestOverlap {
			best, bestOverlap = i, overlap
		}
	}
	switch {
	case best >= 0:
		return corineChange(corineChanges[best])
	case end.Year() < corineChanges[0].from:
		return corineChange(corineChanges[0])
	}
	return corineChange(corineChanges[len(corineChanges)-1])
}

func classificationConverters() []Converter {
	return []Converter{
		{
			Name: "get_corine_product_type", MinArgs: 1, MaxArgs: 1,
			Check: func(args []any) error {
				_, err := asTime(Text(args[0]))
				return err
			},
			Fn: func(v any, args []any) (any, error) {
				start, err := asTime(v)
				if err != nil {
					return nil, err
				}
				end, err := asTime(Text(args[0]))
				if err != nil {
					return nil, err
				}
				return CorineProductType(start, end), nil
			},
		},
		unary("split_corine_id", func(v any) (any, error) {
			s, err := asString(v)
			if err != nil {
				return nil, err
			}
			m := corineIDRe.FindStringSubmatch(s)
			if m == nil {
				return nil, fmt.Errorf("not a CORINE identifier: %q", s)
			}
			if m[1] == "clc" {
				year, _ := strconv.Atoi(m[2])
				return corineCover(year), nil
			}
			from, _ := strconv.Atoi(m[2][:2])
			to, _ := strconv.Atoi(m[2][2:])
			return corineChange(corinePeriod{century(from), century(to)}), nil
		}),
	}
}

func century(yy int) int {
	if yy >= 50 {
		return 1900 + yy
	}
	return 2000 + yy
}
