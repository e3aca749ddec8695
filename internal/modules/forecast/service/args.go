package service

import (
	"aquacast-server/internal/modules/forecast/types"
)

// ForecastArgs returns the model's argument vector for req. The optional
// scenario flags are only present when the caller supplied them.
func ForecastArgs(req types.ForecastRequest) []string {
	args := []string{
		"--district", req.District,
		"--start", req.Start,
		"--end", req.End,
	}
	if req.Precip != "" {
		args = append(args, "--precip_factor", req.Precip)
	}
	if req.Temp != "" {
		args = append(args, "--temp_bias", req.Temp)
	}
	return args
}

// withScript prepends script to args when set, so the interpreter is the
// executable and the script its first argument.
func withScript(script string, args []string) []string {
	if script == "" {
		return args
	}
	return append([]string{script}, args...)
}
