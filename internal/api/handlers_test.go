package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitia/atesta/internal/extract"
	"github.com/licitia/atesta/internal/metrics"
	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/service"
)

// newTestServer builds a server without a database or vision provider:
// extraction runs on native text only and nothing is persisted.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	collector := metrics.NewCollector()
	s := &Server{
		metrics:    collector,
		extraction: service.NewExtractionService(nil, extract.DefaultConfig(), nil, collector),
		match:      service.NewMatchService(nil, collector),
		exporter:   service.NewExporter(collector),
		jobs:       service.NewJobManager(2, nil),
	}
	s.engine = s.buildEngine()
	return s
}

func performRequest(engine *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func planilhaSource(name string) models.DocumentSource {
	return models.DocumentSource{
		Name: name,
		Pages: []models.Page{{
			Number: 1,
			Text: "1.1 Escavação manual de valas m3 120,50\n" +
				"1.2 Reaterro compactado m3 98,00\n" +
				"2.1 Alvenaria de vedação m2 210,00",
		}},
	}
}

func writeSource(t *testing.T, dir, name string, src models.DocumentSource) string {
	t.Helper()
	data, err := json.Marshal(src)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := performRequest(s.engine, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["database"])
	assert.Equal(t, false, body["vision"])
}

func TestExtractInlineSource(t *testing.T) {
	s := newTestServer(t)

	src := planilhaSource("Atestado Obra Escola")
	w := performRequest(s.engine, http.MethodPost, "/api/v1/extract",
		jsonBody(t, gin.H{"source": src}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var outcome extractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
	assert.Len(t, outcome.Result.Records, 3)
	assert.Equal(t, models.StrategyNativeText, outcome.Result.Strategy)
	assert.Nil(t, outcome.Certificate, "no store configured, nothing persisted")
}

func TestExtractFromPath(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	path := writeSource(t, dir, "obra.json", planilhaSource("Atestado Obra"))

	w := performRequest(s.engine, http.MethodPost, "/api/v1/extract",
		jsonBody(t, gin.H{"path": path, "issuer": "Prefeitura de Campinas"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var outcome extractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
	assert.Equal(t, path, outcome.SourcePath)
	assert.Len(t, outcome.Result.Records, 3)
}

func TestExtractValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body []byte
		want string
	}{
		{"invalid json", []byte("{not json"), "invalid request body"},
		{"neither path nor source", jsonBody(t, gin.H{"issuer": "x"}), "exactly one of path or source"},
		{"both path and source", jsonBody(t, gin.H{"path": "/tmp/a.json", "source": planilhaSource("A")}), "exactly one of path or source"},
		{"source without pages", jsonBody(t, gin.H{"source": models.DocumentSource{Name: "vazio"}}), "no pages"},
		{"missing file", jsonBody(t, gin.H{"path": "/tmp/does-not-exist-atesta.json"}), "read source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(s.engine, http.MethodPost, "/api/v1/extract", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestCreateJobAndPollUntilComplete(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	writeSource(t, dir, "a.json", planilhaSource("Obra A"))
	writeSource(t, dir, "b.json", planilhaSource("Obra B"))

	w := performRequest(s.engine, http.MethodPost, "/api/v1/jobs",
		jsonBody(t, gin.H{"dir_path": dir, "name": "acervo-2026"}))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var created jobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Len(t, created.ID, 8)
	assert.Equal(t, "extract", created.Type)
	assert.Equal(t, "acervo-2026", created.Name)
	assert.Equal(t, 2, created.Total)

	listed := performRequest(s.engine, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, listed.Code)
	assert.Contains(t, listed.Body.String(), created.ID)

	deadline := time.After(5 * time.Second)
	var jr jobResponse
	for {
		poll := performRequest(s.engine, http.MethodGet, "/api/v1/jobs/"+created.ID, nil)
		require.Equal(t, http.StatusOK, poll.Code)
		require.NoError(t, json.Unmarshal(poll.Body.Bytes(), &jr))
		if jr.Status.Terminal() {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job did not finish in time: %+v", jr)
		case <-time.After(20 * time.Millisecond):
		}
	}

	assert.Equal(t, service.JobStatusCompleted, jr.Status)
	require.NotNil(t, jr.Result)
	assert.Equal(t, 2, jr.Result.SourcesProcessed)
	assert.Equal(t, 6, jr.Result.RecordsExtracted)
	assert.Empty(t, jr.Result.Errors)
	assert.NotNil(t, jr.CompletedAt)
}

func TestCreateJobValidation(t *testing.T) {
	s := newTestServer(t)

	w := performRequest(s.engine, http.MethodPost, "/api/v1/jobs", jsonBody(t, gin.H{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "dir_path is required")

	w = performRequest(s.engine, http.MethodPost, "/api/v1/jobs",
		jsonBody(t, gin.H{"dir_path": "/tmp/atesta-nao-existe"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid path")

	empty := t.TempDir()
	w = performRequest(s.engine, http.MethodPost, "/api/v1/jobs",
		jsonBody(t, gin.H{"dir_path": empty}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no JSON sources")
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestServer(t)

	w := performRequest(s.engine, http.MethodGet, "/api/v1/jobs/ffffffff", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "job not found")
}

func matchPool() []poolCertificate {
	return []poolCertificate{
		{
			Title: "Atestado Obra A",
			Records: []models.ServiceRecord{
				{Description: "ESCAVACAO MANUAL DE VALAS", Unit: "M3", Quantity: 80},
			},
		},
		{
			Title: "Atestado Obra B",
			Records: []models.ServiceRecord{
				{Description: "ESCAVACAO MANUAL DE VALAS", Unit: "M3", Quantity: 40},
			},
		},
	}
}

func TestMatchWithInlinePool(t *testing.T) {
	s := newTestServer(t)

	req := gin.H{
		"requirement": models.Requirement{
			Description:     "Escavação manual de valas",
			Unit:            "m3",
			QuantityMinimum: 100,
			AllowSum:        true,
		},
		"pool": matchPool(),
	}
	w := performRequest(s.engine, http.MethodPost, "/api/v1/match", jsonBody(t, req))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result models.MatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.StatusAtende, result.Status)
	assert.InDelta(t, 120.0, result.SumQuantities, 0.001)
	assert.Len(t, result.Certificates, 2)
}

func TestMatchValidation(t *testing.T) {
	s := newTestServer(t)

	w := performRequest(s.engine, http.MethodPost, "/api/v1/match",
		jsonBody(t, gin.H{"requirement": models.Requirement{Unit: "m3"}, "pool": matchPool()}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no description")

	// Without an inline pool the handler needs the store.
	w = performRequest(s.engine, http.MethodPost, "/api/v1/match",
		jsonBody(t, gin.H{"requirement": models.Requirement{Description: "Escavação", QuantityMinimum: 1}}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no database configured")
}

func TestMatchBatch(t *testing.T) {
	s := newTestServer(t)

	req := gin.H{
		"requirements": []models.Requirement{
			{Description: "Escavação manual de valas", Unit: "m3", QuantityMinimum: 100, AllowSum: true},
			{Description: "Ponte estaiada em concreto", Unit: "un", QuantityMinimum: 1},
		},
		"pool": matchPool(),
	}
	w := performRequest(s.engine, http.MethodPost, "/api/v1/match/batch", jsonBody(t, req))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Results []models.MatchResult `json:"results"`
		Total   int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 2, body.Total)
	assert.Equal(t, models.StatusAtende, body.Results[0].Status)
	assert.Equal(t, models.StatusNaoAtende, body.Results[1].Status)

	w = performRequest(s.engine, http.MethodPost, "/api/v1/match/batch",
		jsonBody(t, gin.H{"pool": matchPool()}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no requirements")
}

func TestCertificateEndpointsWithoutStore(t *testing.T) {
	s := newTestServer(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/certificates"},
		{http.MethodGet, "/api/v1/certificates/obra-a"},
		{http.MethodDelete, "/api/v1/certificates/obra-a"},
	} {
		w := performRequest(s.engine, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, "%s %s", tc.method, tc.path)
		assert.Contains(t, w.Body.String(), "no database configured")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := performRequest(s.engine, http.MethodPost, "/api/v1/extract",
		jsonBody(t, gin.H{"source": planilhaSource("Obra")}))
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(s.engine, http.MethodGet, "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.NotNil(t, snap.Extraction)
	assert.GreaterOrEqual(t, snap.Extraction.Count, int64(1))
	assert.Equal(t, int64(1), snap.StrategyWins[string(models.StrategyNativeText)])
}

func TestJobWebSocketStreamsUntilTerminal(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	writeSource(t, dir, "a.json", planilhaSource("Obra A"))
	writeSource(t, dir, "b.json", planilhaSource("Obra B"))

	w := performRequest(s.engine, http.MethodPost, "/api/v1/jobs",
		jsonBody(t, gin.H{"dir_path": dir}))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var created jobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws/jobs/" + created.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var last jobResponse
	got := 0
	for {
		var snap jobResponse
		if err := conn.ReadJSON(&snap); err != nil {
			break
		}
		got++
		last = snap
		if snap.Status.Terminal() {
			break
		}
	}

	require.GreaterOrEqual(t, got, 1, "at least one snapshot before close")
	assert.Equal(t, created.ID, last.ID)
	assert.Equal(t, service.JobStatusCompleted, last.Status)
	require.NotNil(t, last.Result)
	assert.Equal(t, 2, last.Result.SourcesProcessed)
}

func TestJobWebSocketUnknownJob(t *testing.T) {
	s := newTestServer(t)

	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws/jobs/ffffffff"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
