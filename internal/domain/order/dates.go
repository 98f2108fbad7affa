package order

import (
	"sort"
	"strings"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/clock"
)

// NormalizeDates validates ride dates and returns them sorted ascending.
func NormalizeDates(dates []string) ([]string, error) {
	if len(dates) == 0 {
		return nil, apperr.InvalidArgument("at least one ride date is required")
	}

	seen := make(map[string]struct{}, len(dates))
	out := make([]string, 0, len(dates))
	for _, raw := range dates {
		d := strings.TrimSpace(raw)
		if _, err := time.Parse(clock.DateLayout, d); err != nil {
			return nil, apperr.Newf(apperr.KindInvalidArgument, "invalid ride date %q", raw)
		}
		if _, dup := seen[d]; dup {
			return nil, apperr.Newf(apperr.KindInvalidArgument, "duplicate ride date %s", d)
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}

	// ISO dates sort lexically
	sort.Strings(out)
	return out, nil
}

// Months returns the distinct YYYY-MM months covered by dates, in order.
func Months(dates []string) []string {
	var out []string
	for _, d := range dates {
		if len(d) < 7 {
			continue
		}
		m := d[:7]
		if len(out) == 0 || out[len(out)-1] != m {
			out = append(out, m)
		}
	}
	return out
}
