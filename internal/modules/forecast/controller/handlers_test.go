package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aquacast-server/internal/modules/forecast/service"
	"aquacast-server/internal/modules/forecast/types"
	"aquacast-server/internal/modules/forecast/views"
)

type mockService struct {
	forecastBody []byte
	forecastErr  error
	lastRequest  types.ForecastRequest

	analyticsBody []byte
	analyticsErr  error

	runs      []types.ForecastRun
	runsErr   error
	lastLimit int

	districts []string
}

func (m *mockService) Forecast(_ context.Context, raw types.ForecastRequest) ([]byte, error) {
	m.lastRequest = raw
	return m.forecastBody, m.forecastErr
}

func (m *mockService) Analytics(context.Context) ([]byte, error) {
	return m.analyticsBody, m.analyticsErr
}

func (m *mockService) Runs(_ context.Context, limit int) ([]types.ForecastRun, error) {
	m.lastLimit = limit
	return m.runs, m.runsErr
}

func (m *mockService) Districts() []string { return m.districts }

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not a JSON object: %v (%q)", err, rec.Body.String())
	}
	return got
}

func Test_handleDashboard(t *testing.T) {
	ctrl := NewForecastController(&mockService{districts: []string{"Chennai", "Madurai"}}).(*forecastControllerImpl)

	t.Run("returns 404 when path is not /", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		rec := httptest.NewRecorder()

		ctrl.handleDashboard(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("renders district list", func(t *testing.T) {
		if err := views.LoadTemplates(); err != nil {
			t.Fatalf("LoadTemplates: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		ctrl.handleDashboard(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want 200", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
			t.Errorf("Content-Type = %q", ct)
		}
		for _, want := range []string{">Chennai</option>", ">Madurai</option>"} {
			if !strings.Contains(rec.Body.String(), want) {
				t.Errorf("body missing %q", want)
			}
		}
	})
}

func Test_staticPages(t *testing.T) {
	if err := views.LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	ctrl := NewForecastController(&mockService{}).(*forecastControllerImpl)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"analytics", ctrl.handleAnalyticsPage, `id="leaderboard"`},
		{"about", ctrl.handleAboutPage, "Advisory thresholds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/"+tt.name, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d; want 200", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
		})
	}
}

func Test_handleForecast(t *testing.T) {
	t.Run("passes query through and relays body", func(t *testing.T) {
		body := []byte(`{"precipitation":[],"temperature":[],"chlorophyll":[]}`)
		svc := &mockService{forecastBody: body}
		ctrl := NewForecastController(svc).(*forecastControllerImpl)

		req := httptest.NewRequest(http.MethodGet, "/forecast?district=Erode&start=2024-01&end=2024-06&precip=1.3&temp=-1", nil)
		rec := httptest.NewRecorder()
		ctrl.handleForecast(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want 200", rec.Code)
		}
		if rec.Body.String() != string(body) {
			t.Errorf("body = %q; want %q", rec.Body.String(), body)
		}
		want := types.ForecastRequest{District: "Erode", Start: "2024-01", End: "2024-06", Precip: "1.3", Temp: "-1"}
		if svc.lastRequest != want {
			t.Errorf("request = %+v; want %+v", svc.lastRequest, want)
		}
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		check      func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:       "missing parameter",
			err:        &service.RelayError{Kind: service.KindMissingParameter, Details: "missing parameters: end"},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				got := decodeBody(t, rec)
				if got["error"] != "Bad Request" || got["message"] != "missing parameters: end" {
					t.Errorf("body = %v", got)
				}
			},
		},
		{
			name:       "invalid parameter",
			err:        &service.RelayError{Kind: service.KindInvalidParameter, Details: "unknown district \"Goa\""},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if got := decodeBody(t, rec); got["message"] != "unknown district \"Goa\"" {
					t.Errorf("body = %v", got)
				}
			},
		},
		{
			name:       "domain error echoes payload",
			err:        &service.RelayError{Kind: service.KindDomainError, Payload: []byte(`{"error": "District not found in dataset."}`)},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if rec.Body.String() != `{"error": "District not found in dataset."}` {
					t.Errorf("body = %q; want payload verbatim", rec.Body.String())
				}
			},
		},
		{
			name:       "process error",
			err:        &service.RelayError{Kind: service.KindExternalProcessError, Details: "Traceback (most recent call last)"},
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				got := decodeBody(t, rec)
				if got["error"] != "Error generating forecast" || got["details"] != "Traceback (most recent call last)" {
					t.Errorf("body = %v", got)
				}
			},
		},
		{
			name:       "parse error",
			err:        &service.RelayError{Kind: service.KindOutputParseError, Details: "invalid character 'F'"},
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if got := decodeBody(t, rec); got["error"] != "Error parsing forecast data" {
					t.Errorf("body = %v", got)
				}
			},
		},
		{
			name:       "unexpected error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if got := decodeBody(t, rec); got["message"] != "internal error" {
					t.Errorf("body = %v", got)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := NewForecastController(&mockService{forecastErr: tt.err}).(*forecastControllerImpl)
			rec := httptest.NewRecorder()
			ctrl.handleForecast(rec, httptest.NewRequest(http.MethodGet, "/forecast", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d; want %d", rec.Code, tt.wantStatus)
			}
			tt.check(t, rec)
		})
	}
}

func Test_handleAnalytics(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		body := []byte(`{"total_samples":10}`)
		ctrl := NewForecastController(&mockService{analyticsBody: body}).(*forecastControllerImpl)
		rec := httptest.NewRecorder()
		ctrl.handleAnalytics(rec, httptest.NewRequest(http.MethodGet, "/api/analytics", nil))

		if rec.Code != http.StatusOK || rec.Body.String() != string(body) {
			t.Errorf("got %d %q; want 200 %q", rec.Code, rec.Body.String(), body)
		}
	})

	for _, kind := range []service.Kind{service.KindExternalProcessError, service.KindOutputParseError} {
		t.Run(string(kind), func(t *testing.T) {
			ctrl := NewForecastController(&mockService{
				analyticsErr: &service.RelayError{Kind: kind, Details: "secret stderr"},
			}).(*forecastControllerImpl)
			rec := httptest.NewRecorder()
			ctrl.handleAnalytics(rec, httptest.NewRequest(http.MethodGet, "/api/analytics", nil))

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d; want 500", rec.Code)
			}
			got := decodeBody(t, rec)
			if len(got) != 1 || got["error"] != "Failed to generate analytics" {
				t.Errorf("body = %v; want the fixed generic error", got)
			}
		})
	}
}

func Test_handleDistricts(t *testing.T) {
	ctrl := NewForecastController(&mockService{districts: []string{"Karur", "Salem"}}).(*forecastControllerImpl)
	rec := httptest.NewRecorder()
	ctrl.handleDistricts(rec, httptest.NewRequest(http.MethodGet, "/api/districts", nil))

	var got []string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0] != "Karur" || got[1] != "Salem" {
		t.Errorf("districts = %v", got)
	}
}

func Test_handleRuns(t *testing.T) {
	t.Run("default limit", func(t *testing.T) {
		svc := &mockService{runs: []types.ForecastRun{{ID: "r1", Kind: "forecast", Outcome: "ok", Status: 200, CreatedAt: time.Now()}}}
		ctrl := NewForecastController(svc).(*forecastControllerImpl)
		rec := httptest.NewRecorder()
		ctrl.handleRuns(rec, httptest.NewRequest(http.MethodGet, "/api/forecast/runs", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want 200", rec.Code)
		}
		if svc.lastLimit != defaultRunsLimit {
			t.Errorf("limit = %d; want %d", svc.lastLimit, defaultRunsLimit)
		}
		if !strings.Contains(rec.Body.String(), `"id":"r1"`) {
			t.Errorf("body = %s", rec.Body.String())
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		ctrl := NewForecastController(&mockService{}).(*forecastControllerImpl)
		rec := httptest.NewRecorder()
		ctrl.handleRuns(rec, httptest.NewRequest(http.MethodGet, "/api/forecast/runs?limit=abc", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d; want 400", rec.Code)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		ctrl := NewForecastController(&mockService{runsErr: errors.New("db locked")}).(*forecastControllerImpl)
		rec := httptest.NewRecorder()
		ctrl.handleRuns(rec, httptest.NewRequest(http.MethodGet, "/api/forecast/runs", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want 500", rec.Code)
		}
	})
}

func TestRegisterRoutes(t *testing.T) {
	if err := views.LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	mux := http.NewServeMux()
	NewForecastController(&mockService{
		forecastBody:  []byte(`{}`),
		analyticsBody: []byte(`{}`),
		runs:          []types.ForecastRun{},
		districts:     []string{"Theni"},
	}).RegisterRoutes(mux)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/analytics", http.StatusOK},
		{http.MethodGet, "/about", http.StatusOK},
		{http.MethodGet, "/forecast?district=Theni&start=2024-01&end=2024-02", http.StatusOK},
		{http.MethodGet, "/api/analytics", http.StatusOK},
		{http.MethodGet, "/api/districts", http.StatusOK},
		{http.MethodGet, "/api/forecast/runs", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodPost, "/forecast", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d; want %d", rec.Code, tt.want)
			}
		})
	}
}
