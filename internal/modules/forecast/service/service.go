package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"aquacast-server/internal/cache"
	"aquacast-server/internal/metrics"
	"aquacast-server/internal/modules/forecast/districts"
	"aquacast-server/internal/modules/forecast/types"
	"aquacast-server/internal/mqtt"
	"aquacast-server/internal/runner"
)

const (
	endpointForecast  = "forecast"
	endpointAnalytics = "analytics"

	outcomeOK = "ok"

	advisoryTimeout = 5 * time.Second
)

// RunStore persists the history of relay invocations.
type RunStore interface {
	InsertRun(ctx context.Context, run types.ForecastRun) error
	ListRuns(ctx context.Context, limit int) ([]types.ForecastRun, error)
}

// Options locate the model executables.
type Options struct {
	PythonBin       string
	ForecastScript  string
	AnalyticsScript string
	ScriptDir       string
	CacheTTL        time.Duration
}

type Deps struct {
	Runner runner.Runner
	// AnalyticsRunner runs the analytics script; Runner is used when nil.
	AnalyticsRunner runner.Runner
	Districts       *districts.Registry
	Cache           cache.Cache
	Publisher       mqtt.AdvisoryPublisher
	Runs            RunStore
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
}

type Service struct {
	runner    runner.Runner
	analytics runner.Runner
	districts *districts.Registry
	cache     cache.Cache
	publisher mqtt.AdvisoryPublisher
	runs      RunStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
	opts      Options

	newID func() string
	now   func() time.Time
}

func NewService(deps Deps, opts Options) *Service {
	s := &Service{
		runner:    deps.Runner,
		analytics: deps.AnalyticsRunner,
		districts: deps.Districts,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		runs:      deps.Runs,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		opts:      opts,
		newID:     uuid.NewString,
		now:       time.Now,
	}
	if s.analytics == nil {
		s.analytics = s.runner
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.publisher == nil {
		s.publisher = mqtt.NopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = metrics.NewMetricsForTesting()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Districts returns the registry names in display order.
func (s *Service) Districts() []string {
	return s.districts.Names()
}

// Forecast validates raw, runs the forecasting model and classifies its
// output. On success the model's stdout is returned unchanged. Every failure
// is a *RelayError.
func (s *Service) Forecast(ctx context.Context, raw types.ForecastRequest) ([]byte, error) {
	started := s.now()
	run := types.ForecastRun{
		Kind:     endpointForecast,
		District: raw.District,
		Start:    raw.Start,
		End:      raw.End,
		Precip:   raw.Precip,
		Temp:     raw.Temp,
	}

	req, err := Validate(s.districts, raw)
	if err != nil {
		s.finish(ctx, &run, started, false, err)
		return nil, err
	}
	run.District = req.District

	cmd := runner.Command{
		Name: s.opts.PythonBin,
		Args: withScript(s.opts.ForecastScript, ForecastArgs(req)),
		Dir:  s.opts.ScriptDir,
	}
	key := cache.Key(cmd.Argv())

	if body, ok := s.cacheGet(ctx, key); ok {
		s.finish(ctx, &run, started, true, nil)
		return body, nil
	}

	s.logger.Info("executing forecast", "argv", cmd.Argv())
	res, err := s.exec(ctx, s.runner, endpointForecast, cmd)
	if err != nil {
		rerr := &RelayError{Kind: KindExternalProcessError, Details: processDetails(res, err), Err: err}
		s.logger.Error("forecast process failed", "error", err, "exit_code", res.ExitCode, "stderr", string(res.Stderr))
		s.finish(ctx, &run, started, false, rerr)
		return nil, rerr
	}

	if err := classify(res.Stdout); err != nil {
		if KindOf(err) == KindOutputParseError {
			s.logger.Error("forecast output is not JSON", "error", err, "stdout_bytes", len(res.Stdout))
		} else {
			s.logger.Warn("forecast model reported an error", "district", req.District)
		}
		s.finish(ctx, &run, started, false, err)
		return nil, err
	}

	s.cacheSet(ctx, key, res.Stdout)
	run.ID = s.newID()
	s.publishAdvisory(ctx, run.ID, req, res.Stdout)
	s.finish(ctx, &run, started, false, nil)
	return res.Stdout, nil
}

// Analytics runs the analytics script. Any failure is reported as a
// *RelayError; callers are expected to show a generic message.
func (s *Service) Analytics(ctx context.Context) ([]byte, error) {
	started := s.now()
	run := types.ForecastRun{Kind: endpointAnalytics}

	cmd := runner.Command{
		Name: s.opts.PythonBin,
		Args: withScript(s.opts.AnalyticsScript, nil),
		Dir:  s.opts.ScriptDir,
	}
	key := cache.Key(cmd.Argv())

	if body, ok := s.cacheGet(ctx, key); ok {
		s.finish(ctx, &run, started, true, nil)
		return body, nil
	}

	res, err := s.exec(ctx, s.analytics, endpointAnalytics, cmd)
	if err != nil {
		rerr := &RelayError{Kind: KindExternalProcessError, Details: processDetails(res, err), Err: err}
		s.logger.Error("analytics process failed", "error", err, "exit_code", res.ExitCode, "stderr", string(res.Stderr))
		s.finish(ctx, &run, started, false, rerr)
		return nil, rerr
	}

	var v any
	if err := json.Unmarshal(res.Stdout, &v); err != nil {
		rerr := &RelayError{Kind: KindOutputParseError, Details: err.Error(), Err: err}
		s.logger.Error("analytics output is not JSON", "error", err)
		s.finish(ctx, &run, started, false, rerr)
		return nil, rerr
	}

	s.cacheSet(ctx, key, res.Stdout)
	s.finish(ctx, &run, started, false, nil)
	return res.Stdout, nil
}

// Runs returns the most recent relay invocations, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]types.ForecastRun, error) {
	if s.runs == nil {
		return []types.ForecastRun{}, nil
	}
	return s.runs.ListRuns(ctx, limit)
}

// classify decides what a model's stdout means. A JSON object whose
// "error" member is truthy is a domain error; anything that is not JSON is
// a parse error.
func classify(stdout []byte) error {
	var v any
	if err := json.Unmarshal(stdout, &v); err != nil {
		return &RelayError{Kind: KindOutputParseError, Details: err.Error(), Err: err}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	if truthy(obj["error"]) {
		return &RelayError{Kind: KindDomainError, Payload: stdout, Details: fmt.Sprint(obj["error"])}
	}
	return nil
}

// truthy follows JavaScript truthiness for decoded JSON values.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	default:
		return true
	}
}

func processDetails(res runner.Result, err error) string {
	if errors.Is(err, runner.ErrTimeout) || errors.Is(err, runner.ErrOutputTooLarge) {
		return err.Error()
	}
	if len(res.Stderr) > 0 {
		return string(res.Stderr)
	}
	return err.Error()
}

func (s *Service) exec(ctx context.Context, r runner.Runner, endpoint string, cmd runner.Command) (runner.Result, error) {
	s.metrics.ProcessInFlight.Inc()
	defer s.metrics.ProcessInFlight.Dec()

	res, err := r.Run(ctx, cmd)
	if res.Duration > 0 {
		s.metrics.ProcessDuration.WithLabelValues(endpoint).Observe(res.Duration.Seconds())
	}
	return res, err
}

func (s *Service) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.opts.CacheTTL <= 0 {
		return nil, false
	}
	body, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.Cache.WithLabelValues("error").Inc()
		s.logger.Warn("cache lookup failed", "error", err)
		return nil, false
	case ok:
		s.metrics.Cache.WithLabelValues("hit").Inc()
		return body, true
	default:
		s.metrics.Cache.WithLabelValues("miss").Inc()
		return nil, false
	}
}

func (s *Service) cacheSet(ctx context.Context, key string, body []byte) {
	if s.opts.CacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, body, s.opts.CacheTTL); err != nil {
		s.metrics.Cache.WithLabelValues("error").Inc()
		s.logger.Warn("cache store failed", "error", err)
	}
}

func (s *Service) publishAdvisory(ctx context.Context, runID string, req types.ForecastRequest, stdout []byte) {
	var summary types.ForecastSummary
	if err := json.Unmarshal(stdout, &summary); err != nil {
		// Valid JSON that is not an object, or with differently typed fields.
		s.logger.Debug("forecast output has no advisory summary", "error", err)
		return
	}
	if len(summary.Alerts) == 0 {
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), advisoryTimeout)
	defer cancel()

	err := s.publisher.Publish(pctx, mqtt.Advisory{
		RunID:      runID,
		District:   req.District,
		Start:      req.Start,
		End:        req.End,
		RiskStatus: summary.RiskStatus,
		Alerts:     summary.Alerts,
		IssuedAt:   s.now().UTC(),
	})
	if err != nil {
		s.metrics.Advisories.WithLabelValues("error").Inc()
		s.logger.Warn("advisory publish failed", "run_id", runID, "error", err)
		return
	}
	s.metrics.Advisories.WithLabelValues("published").Inc()
}

// finish records the outcome of one relay call in metrics and run history.
func (s *Service) finish(ctx context.Context, run *types.ForecastRun, started time.Time, cached bool, err error) {
	outcome := outcomeOK
	status := http.StatusOK
	if err != nil {
		outcome = string(KindOf(err))
		var re *RelayError
		if errors.As(err, &re) {
			status = re.Status()
		}
	}
	s.metrics.RelayRuns.WithLabelValues(run.Kind, outcome).Inc()

	if s.runs == nil {
		return
	}
	if run.ID == "" {
		run.ID = s.newID()
	}
	run.Outcome = outcome
	run.Status = status
	run.Cached = cached
	run.CreatedAt = started.UTC()
	run.DurationMS = s.now().Sub(started).Milliseconds()

	if err := s.runs.InsertRun(context.WithoutCancel(ctx), *run); err != nil {
		s.logger.Error("record run failed", "run_id", run.ID, "error", err)
	}
}
