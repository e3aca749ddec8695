package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"aquacast-server/internal/modules/forecast/districts"
	"aquacast-server/internal/modules/forecast/types"
)

// Dates are accepted as calendar days or as whole months; a month stands for
// its first day when the range is checked.
var dateLayouts = []string{"2006-01-02", "2006-01"}

// Validate checks a raw forecast query. Missing required fields are reported
// together; the first invalid field is reported otherwise. The returned
// request carries the canonical district spelling and the caller's original
// dates and scenario values.
func Validate(reg *districts.Registry, raw types.ForecastRequest) (types.ForecastRequest, error) {
	var missing []string
	if raw.District == "" {
		missing = append(missing, "district")
	}
	if raw.Start == "" {
		missing = append(missing, "start")
	}
	if raw.End == "" {
		missing = append(missing, "end")
	}
	if len(missing) > 0 {
		return types.ForecastRequest{}, &RelayError{
			Kind:    KindMissingParameter,
			Details: "missing parameters: " + strings.Join(missing, ", "),
		}
	}

	district, ok := reg.Lookup(raw.District)
	if !ok {
		return types.ForecastRequest{}, invalid("unknown district %q", raw.District)
	}

	start, err := parseDate(raw.Start)
	if err != nil {
		return types.ForecastRequest{}, invalid("invalid 'start' %q (expected YYYY-MM-DD or YYYY-MM)", raw.Start)
	}
	end, err := parseDate(raw.End)
	if err != nil {
		return types.ForecastRequest{}, invalid("invalid 'end' %q (expected YYYY-MM-DD or YYYY-MM)", raw.End)
	}
	if end.Before(start) {
		return types.ForecastRequest{}, invalid("'end' must not be before 'start'")
	}

	if raw.Precip != "" {
		f, err := parseFinite(raw.Precip)
		if err != nil || f <= 0 {
			return types.ForecastRequest{}, invalid("invalid 'precip' %q (expected a positive number)", raw.Precip)
		}
	}
	if raw.Temp != "" {
		if _, err := parseFinite(raw.Temp); err != nil {
			return types.ForecastRequest{}, invalid("invalid 'temp' %q (expected a number)", raw.Temp)
		}
	}

	return types.ForecastRequest{
		District: district,
		Start:    raw.Start,
		End:      raw.End,
		Precip:   raw.Precip,
		Temp:     raw.Temp,
	}, nil
}

func invalid(format string, args ...any) *RelayError {
	return &RelayError{Kind: KindInvalidParameter, Details: fmt.Sprintf(format, args...)}
}

func parseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	return f, nil
}
