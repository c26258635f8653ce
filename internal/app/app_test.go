package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvmapper/internal/config"
	"csvmapper/internal/shared/testutil"
)

func newTestApplication(t *testing.T, mutate func(cfg *config.Config)) *Application {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Telemetry.TraceExporter = "none"
	if mutate != nil {
		mutate(cfg)
	}

	logger, _ := testutil.NewTestLogger(t)
	app, err := NewApplication(cfg, logger)
	require.NoError(t, err)
	return app
}

func do(t *testing.T, app *Application, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, app *Application, id, slot, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(config.UploadFormField, name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/sessions/%s/files/%s", id, slot), &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return do(t, app, req)
}

func postJSON(t *testing.T, app *Application, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return do(t, app, req)
}

func TestNewApplication(t *testing.T) {
	app := newTestApplication(t, nil)

	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.MappingService)
	assert.NotNil(t, app.HealthService)
	assert.NotNil(t, app.Metrics)
	assert.NotNil(t, app.OTelProviders.PrometheusHTTP)
	assert.Equal(t, "127.0.0.1:8080", app.Server.Addr)
	assert.Equal(t, app.Config.Server.ReadTimeout, app.Server.ReadTimeout)
	assert.Equal(t, app.Config.Server.MaxHeaderBytes, app.Server.MaxHeaderBytes)
}

func TestNewApplication_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{"bad port", func(cfg *config.Config) { cfg.Server.Port = 0 }},
		{"bad encoding", func(cfg *config.Config) { cfg.Upload.Encodings = []string{"klingon"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			logger, _ := testutil.NewTestLogger(t)
			_, err := NewApplication(cfg, logger)
			assert.Error(t, err)
		})
	}
}

func TestApplication_Workflow(t *testing.T) {
	app := newTestApplication(t, nil)

	rec := do(t, app, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var created struct {
		Status string `json:"status"`
		Data   struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Data.ID
	require.Len(t, id, 36)

	rec = upload(t, app, id, "a", "customers.csv",
		testutil.CSVBytes(t, []string{"id", "name"}, []string{"1", "x"}, []string{"2", "y"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = upload(t, app, id, "2", "balances.csv",
		testutil.CSVBytes(t, []string{"id", "val"}, []string{"1", "10"}, []string{"3", "30"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, app, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/columns/b", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"columns":["id","val"]`)

	rec = postJSON(t, app, http.MethodPost, "/api/sessions/"+id+"/merge", `{"keys_a":["id"],"keys_b":["id"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"rows":[["1","x","10"]]`)

	rec = postJSON(t, app, http.MethodPut, "/api/sessions/"+id+"/columns", `{"columns":["name","val"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = postJSON(t, app, http.MethodPost, "/api/sessions/"+id+"/pivot", `{"index":["name"],"values":["val"],"aggfunc":"sum"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// empty selections reach the merge and pivot engines
	rec = postJSON(t, app, http.MethodPost, "/api/sessions/"+id+"/merge", `{"keys_a":["id"],"keys_b":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"error_code":"MERGE_CONFIG"`)
	assert.Contains(t, rec.Body.String(), `"/errors/merge/invalid-configuration"`)

	rec = postJSON(t, app, http.MethodPost, "/api/sessions/"+id+"/pivot", `{"index":["name"],"aggfunc":"sum"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"error_code":"PIVOT_CONFIG"`)
	assert.Contains(t, rec.Body.String(), `"/errors/pivot/invalid-configuration"`)

	rec = do(t, app, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/export/merged?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "name,val\nx,10\n", rec.Body.String())
	assert.Equal(t, "attachment; filename=custom_mapped_data.csv", rec.Header().Get("Content-Disposition"))

	rec = do(t, app, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/export/pivot?format=xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = do(t, app, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active_sessions":1`)

	rec = do(t, app, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, app, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mapping_operations_total")
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestApplication_Errors(t *testing.T) {
	app := newTestApplication(t, nil)

	rec := do(t, app, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Data.ID

	tests := []struct {
		name           string
		request        func() *httptest.ResponseRecorder
		expectedStatus int
		expectedType   string
	}{
		{
			name: "merge before uploads",
			request: func() *httptest.ResponseRecorder {
				return postJSON(t, app, http.MethodPost, "/api/sessions/"+id+"/merge", `{"keys_a":["id"],"keys_b":["id"]}`)
			},
			expectedStatus: http.StatusConflict,
			expectedType:   "/errors/conflict",
		},
		{
			name: "undecodable upload",
			request: func() *httptest.ResponseRecorder {
				return upload(t, app, id, "a", "wide.csv", []byte("a,b\n1,2,3\n"))
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   "/errors/upload/decode-failed",
		},
		{
			name: "unknown route",
			request: func() *httptest.ResponseRecorder {
				return do(t, app, httptest.NewRequest(http.MethodGet, "/api/nowhere", nil))
			},
			expectedStatus: http.StatusNotFound,
			expectedType:   "/errors/not-found",
		},
		{
			name: "wrong method",
			request: func() *httptest.ResponseRecorder {
				return do(t, app, httptest.NewRequest(http.MethodPatch, "/api/sessions/"+id+"/merge", nil))
			},
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.request()
			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.expectedType != "" {
				var problem map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
				assert.Equal(t, tt.expectedType, problem["type"])
				assert.NotEmpty(t, problem["trace_id"])
			}
		})
	}
}

func TestApplication_MetricsDisabled(t *testing.T) {
	app := newTestApplication(t, func(cfg *config.Config) {
		cfg.Telemetry.EnableMetrics = false
	})

	assert.Nil(t, app.OTelProviders.PrometheusHTTP)
	rec := do(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplication_RateLimit(t *testing.T) {
	app := newTestApplication(t, func(cfg *config.Config) {
		cfg.Security.RateLimit.RPS = 0.1
		cfg.Security.RateLimit.Burst = 1
	})

	rec := do(t, app, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, app, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// the scrape endpoint sits outside /api
	rec = do(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplication_getCORSConfig(t *testing.T) {
	app := newTestApplication(t, func(cfg *config.Config) {
		cfg.Security.AllowedOrigins = []string{"http://localhost:3000"}
	})

	cors := app.getCORSConfig()
	assert.Equal(t, []string{"http://localhost:3000"}, cors.AllowedOrigins)
	assert.Contains(t, cors.ExposedHeaders, "Content-Disposition")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := do(t, app, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestApplication_performStartupHealthCheck(t *testing.T) {
	app := newTestApplication(t, func(cfg *config.Config) {
		cfg.Logging.Output = "file"
		cfg.Logging.FilePath = t.TempDir() + "/logs/csvmap.log"
	})
	assert.Empty(t, app.performStartupHealthCheck(context.Background()))
}

func TestApplication_Serve(t *testing.T) {
	app := newTestApplication(t, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.Serve(ctx, ln)
	}()

	url := fmt.Sprintf("http://%s/api/health", ln.Addr().String())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = http.Get(url)
	assert.Error(t, err)
}
