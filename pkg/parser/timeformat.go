package parser

import (
	"fmt"
	"regexp"
	"time"

	"github.com/araddon/dateparse"
)

// timeCandidate pairs a Go reference layout with a regex that recognizes
// strings shaped like that layout, so detection can reject strings that
// merely happen to parse under the wrong layout (e.g. "01-02-03").
// Ordered most specific → least specific, per spec.md §4.4.
type timeCandidate struct {
	displayFormat string
	layout        string
	pattern       *regexp.Regexp
}

var timeCandidates = []timeCandidate{
	{
		displayFormat: "date_time_fraction",
		layout:        "2006-01-02 15:04:05.999999",
		pattern:       regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}\.\d+$`),
	},
	{
		displayFormat: "date_time",
		layout:        "2006-01-02 15:04:05",
		pattern:       regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}$`),
	},
	{
		displayFormat: "iso_t_offset",
		layout:        "2006-01-02T15:04:05Z07:00",
		pattern:       regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}([+-]\d{2}:\d{2}|Z)$`),
	},
	{
		displayFormat: "date_only",
		layout:        "2006-01-02",
		pattern:       regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
	},
	{
		displayFormat: "time_fraction",
		layout:        "15:04:05.999999",
		pattern:       regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\.\d+$`),
	},
	{
		displayFormat: "time_only",
		layout:        "15:04:05",
		pattern:       regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`),
	},
}

// detectTimeFormat samples up to 10 non-empty strings and finds the first
// ordered candidate whose regex matches and whose Parse succeeds on all
// of them. Returns "auto" when no candidate fits, signalling that the
// caller should fall back to dateparse.ParseAny per value.
func detectTimeFormat(samples []string) (displayFormat, layout string) {
	sample := take(samples, 10)
	for _, c := range timeCandidates {
		ok := true
		for _, s := range sample {
			if s == "" {
				continue
			}
			if !c.pattern.MatchString(s) {
				ok = false
				break
			}
			if _, err := time.Parse(c.layout, s); err != nil {
				ok = false
				break
			}
		}
		if ok && len(sample) > 0 {
			return c.displayFormat, c.layout
		}
	}
	return "auto", ""
}

func take(s []string, n int) []string {
	nonEmpty := make([]string, 0, n)
	for _, v := range s {
		if v == "" {
			continue
		}
		nonEmpty = append(nonEmpty, v)
		if len(nonEmpty) == n {
			break
		}
	}
	return nonEmpty
}

// parseTimeColumn converts raw x strings to float64 seconds since the
// Unix epoch, using a user-supplied format if given, otherwise
// autodetecting per spec.md §4.4.
func parseTimeColumn(raw []string, userFormat string) (values []float64, displayFormat string, err error) {
	layout := ""
	if userFormat != "" {
		layout = userFormat
		displayFormat = "custom"
	} else {
		displayFormat, layout = detectTimeFormat(raw)
	}

	out := make([]float64, len(raw))
	for i, s := range raw {
		if s == "" {
			out[i] = 0
			continue
		}
		var t time.Time
		var perr error
		if layout != "" {
			t, perr = time.Parse(layout, s)
		}
		if layout == "" || perr != nil {
			t, perr = dateparse.ParseAny(s)
			displayFormat = "auto"
		}
		if perr != nil {
			return nil, "", fmt.Errorf("%w: %q: %v", ErrTimeParseFailure, s, perr)
		}
		out[i] = float64(t.UnixNano()) / 1e9
	}
	return out, displayFormat, nil
}
