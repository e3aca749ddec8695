package app

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aquacast-server/internal/cache"
	"aquacast-server/internal/config"
	db "aquacast-server/internal/db"
	httpapi "aquacast-server/internal/httpapi"
	"aquacast-server/internal/metrics"
	"aquacast-server/internal/migrate"
	forecast "aquacast-server/internal/modules/forecast"
	"aquacast-server/internal/modules/forecast/districts"
	"aquacast-server/internal/modules/forecast/repository"
	"aquacast-server/internal/modules/forecast/service"
	forecastviews "aquacast-server/internal/modules/forecast/views"
	"aquacast-server/internal/mqtt"
	"aquacast-server/internal/runner"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"staticDir", cfg.StaticDir,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"pythonBin", cfg.PythonBin,
		"forecastScript", cfg.ForecastScript,
		"analyticsScript", cfg.AnalyticsScript,
		"scriptDir", cfg.ScriptDir,
		"forecastTimeout", cfg.ForecastTimeout,
		"analyticsTimeout", cfg.AnalyticsTimeout,
		"maxOutputBytes", cfg.MaxOutputBytes,
		"forecastMaxConcurrent", cfg.ForecastMaxConcurrent,
		"forecastRateLimit", cfg.ForecastRateLimit,
		"cacheBackend", cfg.CacheBackend,
		"cacheTTL", cfg.CacheTTL,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
	)

	dbConn, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := migrate.Run(ctx, dbConn); err != nil {
		return err
	}
	slog.Info("database ready")

	registry, err := districts.Load(cfg.DistrictsFile)
	if err != nil {
		return err
	}
	slog.Info("districts loaded", "count", registry.Len())

	forecastCache, err := cache.New(cfg, logger)
	if err != nil {
		return err
	}
	if closer, ok := forecastCache.(io.Closer); ok {
		defer func() {
			if closeErr := closer.Close(); closeErr != nil {
				slog.Error("cache close", "error", closeErr)
			}
		}()
	}

	if err := forecastviews.LoadTemplates(); err != nil {
		return err
	}

	var publisher mqtt.AdvisoryPublisher = mqtt.NopPublisher{}
	var mqttPublisher *mqtt.Publisher
	if cfg.MQTTEnabled() {
		mqttPublisher = mqtt.NewPublisher(cfg, logger)
		publisher = mqttPublisher
		// The client keeps retrying in the background; advisories issued
		// before the first CONNACK are dropped.
		go func() {
			if err := mqttPublisher.Connect(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("mqtt connection failed (continuing without advisories)", "error", err)
			}
		}()
	} else {
		slog.Info("mqtt disabled (MQTT_BROKER not set)")
	}

	m := metrics.NewMetrics()

	// Both relays draw from one pool of process slots.
	slots := runner.NewSlots(cfg.ForecastMaxConcurrent)
	forecastRunner := runner.NewLimitedRunner(
		runner.NewExecRunner(cfg.MaxOutputBytes, cfg.ForecastTimeout),
		runner.Limits{
			Slots:   slots,
			Limiter: runner.NewLimiter(cfg.ForecastRateLimit, cfg.ForecastRateBurst),
			Timeout: cfg.ForecastTimeout,
		},
	)
	analyticsRunner := runner.NewLimitedRunner(
		runner.NewExecRunner(cfg.MaxOutputBytes, cfg.AnalyticsTimeout),
		runner.Limits{Slots: slots, Timeout: cfg.AnalyticsTimeout},
	)

	svc := service.NewService(service.Deps{
		Runner:          forecastRunner,
		AnalyticsRunner: analyticsRunner,
		Districts:       registry,
		Cache:           forecastCache,
		Publisher:       publisher,
		Runs:            repository.NewRepository(dbConn),
		Metrics:         m,
		Logger:          logger,
	}, service.Options{
		PythonBin:       cfg.PythonBin,
		ForecastScript:  cfg.ForecastScript,
		AnalyticsScript: cfg.AnalyticsScript,
		ScriptDir:       cfg.ScriptDir,
		CacheTTL:        cfg.CacheTTL,
	})

	var healthDeps []httpapi.Dependency
	if rc, ok := forecastCache.(*cache.Redis); ok {
		healthDeps = append(healthDeps, httpapi.Dependency{Name: "redis", Ping: rc.Ping})
	}
	mux := httpapi.NewMux(dbConn, staticAssets(cfg), promhttp.Handler(), healthDeps...)
	forecast.RegisterFeature(mux, svc)

	srv := httpapi.NewServer(cfg, mux, m)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if mqttPublisher != nil {
		slog.Info("mqtt disconnecting")
		mqttPublisher.Disconnect()
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// staticAssets serves STATIC_DIR from disk when set, the embedded assets
// otherwise.
func staticAssets(cfg config.Config) fs.FS {
	if cfg.StaticDir != "" {
		return os.DirFS(cfg.StaticDir)
	}
	return forecastviews.StaticFS()
}
