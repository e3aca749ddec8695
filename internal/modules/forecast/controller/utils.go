package controller

import (
	"errors"
	"net/http"
	"strconv"

	"aquacast-server/internal/modules/forecast/types"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// parseForecastQuery copies the forecast parameters as given. Validation
// happens in the service so rejected requests are recorded too.
func parseForecastQuery(r *http.Request) types.ForecastRequest {
	q := r.URL.Query()
	return types.ForecastRequest{
		District: q.Get("district"),
		Start:    q.Get("start"),
		End:      q.Get("end"),
		Precip:   q.Get("precip"),
		Temp:     q.Get("temp"),
	}
}

func parseRunsQuery(r *http.Request) (limit int, err error) {
	limit = defaultRunsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, errors.New("invalid 'limit' (expected integer)")
		}
		if n <= 0 {
			return 0, errors.New("'limit' must be > 0")
		}
		if n > maxRunsLimit {
			return 0, errors.New("'limit' must be <= 200")
		}
		limit = n
	}
	return limit, nil
}
