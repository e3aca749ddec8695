package types

import (
	"encoding/json"
	"time"
)

// ForecastRequest is a validated forecast query. Precip and Temp keep the
// caller's original text and are empty when the parameter was absent.
type ForecastRequest struct {
	District string
	Start    string
	End      string
	Precip   string
	Temp     string
}

// ForecastSummary is the subset of model output the server reads for
// itself. The payload returned to clients is never re-encoded from it.
type ForecastSummary struct {
	Alerts     []json.RawMessage `json:"alerts"`
	RiskStatus string            `json:"risk_status"`
}

type ForecastRun struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	District   string    `json:"district,omitempty"`
	Start      string    `json:"start,omitempty"`
	End        string    `json:"end,omitempty"`
	Precip     string    `json:"precip,omitempty"`
	Temp       string    `json:"temp,omitempty"`
	Outcome    string    `json:"outcome"`
	Status     int       `json:"status"`
	Cached     bool      `json:"cached"`
	DurationMS int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}
