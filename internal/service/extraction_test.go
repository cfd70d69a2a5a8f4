package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitia/atesta/internal/extract"
	"github.com/licitia/atesta/internal/metrics"
	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/vision"
)

// fakeVision replays queued vision responses, one per call.
type fakeVision struct {
	responses [][]models.VisionRow
	errs      []error
	calls     int
}

func (f *fakeVision) ExtractTable(_ context.Context, _ [][]byte, _ string) ([]models.VisionRow, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return nil, fmt.Errorf("no queued response")
}

func (f *fakeVision) TablePrompt() string      { return "tabela" }
func (f *fakeVision) EscalationPrompt() string { return "tabela estrita" }

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

func TestLoadSource(t *testing.T) {
	dir := t.TempDir()
	svc := NewExtractionService(nil, extract.DefaultConfig(), nil, nil)

	path := writeSource(t, dir, "obra-escola.json", planilhaSource("Atestado Escola Municipal"))
	src, err := svc.LoadSource(path)
	require.NoError(t, err)
	assert.Equal(t, "Atestado Escola Municipal", src.Name)
	assert.Len(t, src.Pages, 1)
}

func TestLoadSourceDefaultsNameFromFile(t *testing.T) {
	dir := t.TempDir()
	svc := NewExtractionService(nil, extract.DefaultConfig(), nil, nil)

	unnamed := planilhaSource("")
	path := writeSource(t, dir, "obra-ponte.json", unnamed)
	src, err := svc.LoadSource(path)
	require.NoError(t, err)
	assert.Equal(t, "obra-ponte", src.Name)
}

func TestLoadSourceDecodesPageImages(t *testing.T) {
	dir := t.TempDir()
	svc := NewExtractionService(nil, extract.DefaultConfig(), nil, nil)

	withImage := models.DocumentSource{
		Name:  "digitalizado",
		Pages: []models.Page{{Number: 1, Image: []byte{0x89, 0x50, 0x4e, 0x47}}},
	}
	path := writeSource(t, dir, "scan.json", withImage)
	src, err := svc.LoadSource(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, src.Pages[0].Image,
		"base64 page image should round-trip through the JSON loader")
}

func TestLoadSourceErrors(t *testing.T) {
	dir := t.TempDir()
	svc := NewExtractionService(nil, extract.DefaultConfig(), nil, nil)

	_, err := svc.LoadSource(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "read source")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = svc.LoadSource(bad)
	assert.ErrorContains(t, err, "parse source")

	empty := writeSource(t, dir, "empty.json", models.DocumentSource{Name: "vazio"})
	_, err = svc.LoadSource(empty)
	assert.ErrorContains(t, err, "no pages")
}

func TestCollectSources(t *testing.T) {
	dir := t.TempDir()
	svc := NewExtractionService(nil, extract.DefaultConfig(), nil, nil)

	writeSource(t, dir, "a.json", planilhaSource("A"))
	writeSource(t, dir, "b.JSON", planilhaSource("B"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeSource(t, sub, "c.json", planilhaSource("C"))

	flat, err := svc.CollectSources(dir, false)
	require.NoError(t, err)
	assert.Len(t, flat, 2, "non-recursive should skip subdirectories")

	all, err := svc.CollectSources(dir, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestExtractSourceWithoutStore(t *testing.T) {
	svc := NewExtractionService(nil, extract.DefaultConfig(), nil, nil)
	src := planilhaSource("Atestado Prefeitura")

	outcome, err := svc.ExtractSource(context.Background(), &src, "", ExtractOptions{})
	require.NoError(t, err)

	assert.Len(t, outcome.Result.Records, 3)
	assert.Equal(t, models.StrategyNativeText, outcome.Result.Strategy)
	assert.Nil(t, outcome.Certificate, "no store configured, nothing persisted")
	assert.False(t, outcome.Created)
}

func TestProcessSourcesCollectsErrors(t *testing.T) {
	dir := t.TempDir()
	svc := NewExtractionService(nil, extract.DefaultConfig(), nil, nil)

	writeSource(t, dir, "a.json", planilhaSource("A"))
	writeSource(t, dir, "b.json", planilhaSource("B"))
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0o644))

	sources, err := svc.CollectSources(dir, false)
	require.NoError(t, err)
	require.Len(t, sources, 3)

	result, err := svc.ProcessSources(context.Background(), nil, nil, sources, ExtractOptions{Concurrency: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, result.SourcesProcessed)
	assert.Equal(t, 6, result.RecordsExtracted)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "broken.json")
	assert.Equal(t, 0, result.CertificatesStored)
}

func TestProcessSourcesAbortsOnFatalProviderError(t *testing.T) {
	dir := t.TempDir()
	fatal := fmt.Errorf("%w: credit balance is too low", vision.ErrFatalAPI)
	provider := &fakeVision{errs: []error{fatal, fatal, fatal, fatal}}
	svc := NewExtractionService(nil, extract.DefaultConfig(), provider, nil)

	scan := models.DocumentSource{
		Name:  "scan",
		Pages: []models.Page{{Number: 1, Image: []byte{0x89, 0x50}}},
	}
	writeSource(t, dir, "scan1.json", scan)
	writeSource(t, dir, "scan2.json", scan)

	sources, err := svc.CollectSources(dir, false)
	require.NoError(t, err)

	result, err := svc.ProcessSources(context.Background(), nil, nil, sources, ExtractOptions{Concurrency: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, vision.ErrFatalAPI)
	assert.ErrorContains(t, err, "batch aborted")
	assert.Nil(t, result)
}

func TestExtractDirectoryAsync(t *testing.T) {
	dir := t.TempDir()
	svc := NewExtractionService(nil, extract.DefaultConfig(), nil, nil)
	jm := NewJobManager(2, nil)

	writeSource(t, dir, "a.json", planilhaSource("A"))
	writeSource(t, dir, "b.json", planilhaSource("B"))

	job, err := svc.ExtractDirectoryAsync(context.Background(), jm, dir, "obra-teste", ExtractOptions{})
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Len(t, job.ID, 8)
	assert.Equal(t, "extract", job.Type)
	assert.Equal(t, 2, job.Total)

	deadline := time.After(5 * time.Second)
	for {
		snap := jm.GetJob(job.ID).Snapshot()
		if snap.Status.Terminal() {
			require.Equal(t, JobStatusCompleted, snap.Status, "error: %s", snap.Error)
			require.NotNil(t, snap.Result)
			assert.Equal(t, 2, snap.Result.SourcesProcessed)
			assert.Equal(t, 6, snap.Result.RecordsExtracted)
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job did not finish: %+v", &snap)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestExtractDirectoryAsyncValidation(t *testing.T) {
	dir := t.TempDir()
	svc := NewExtractionService(nil, extract.DefaultConfig(), nil, nil)
	jm := NewJobManager(2, nil)

	_, err := svc.ExtractDirectoryAsync(context.Background(), jm, filepath.Join(dir, "nope"), "", ExtractOptions{})
	assert.ErrorContains(t, err, "invalid path")

	file := writeSource(t, dir, "a.json", planilhaSource("A"))
	_, err = svc.ExtractDirectoryAsync(context.Background(), jm, file, "", ExtractOptions{})
	assert.ErrorContains(t, err, "must be a directory")

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))
	_, err = svc.ExtractDirectoryAsync(context.Background(), jm, empty, "", ExtractOptions{})
	assert.ErrorContains(t, err, "no JSON sources")
}

func TestMeteredVisionCountsEscalations(t *testing.T) {
	collector := metrics.NewCollector()
	provider := &fakeVision{responses: [][]models.VisionRow{
		{{Descricao: "linha ilegível"}}, // table pass, unusable
		{
			{Item: "1.1", Descricao: "Escavação manual de valas", Unidade: "m3", Quantidade: "120,50"},
			{Item: "1.2", Descricao: "Reaterro compactado", Unidade: "m3", Quantidade: "98,00"},
		},
	}}
	svc := NewExtractionService(nil, extract.DefaultConfig(), provider, collector)

	src := models.DocumentSource{
		Name:  "scan",
		Pages: []models.Page{{Number: 1, Image: []byte{0x89}}},
	}
	outcome, err := svc.ExtractSource(context.Background(), &src, "", ExtractOptions{})
	require.NoError(t, err)
	require.Len(t, outcome.Result.Records, 2)

	snap := collector.Snapshot()
	assert.EqualValues(t, 1, snap.VisionEscalations)
	require.NotNil(t, snap.VisionCall)
	assert.EqualValues(t, 2, snap.VisionCall.Count)
	assert.EqualValues(t, 1, snap.StrategyWins[string(models.StrategyVisionTable)])
	require.NotNil(t, snap.Extraction)
	assert.EqualValues(t, 1, snap.Extraction.Count)
}

func TestJobManagerLifecycleInMemory(t *testing.T) {
	jm := NewJobManager(0, nil)
	assert.Equal(t, 4, jm.Concurrency(), "default concurrency")

	job, err := jm.CreateJob(context.Background(), "extract", "lote-1", "/tmp/src", []string{"a.json", "b.json"}, nil)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)

	jm.SetRunning(context.Background(), job)
	jm.UpdateProgress(context.Background(), job, 1, 2)
	snap := job.Snapshot()
	assert.Equal(t, JobStatusRunning, snap.Status)
	assert.Equal(t, 1, snap.Progress)

	jm.Complete(context.Background(), job, &BatchResult{SourcesProcessed: 2})
	snap = job.Snapshot()
	assert.Equal(t, JobStatusCompleted, snap.Status)
	assert.True(t, snap.Status.Terminal())
	require.NotNil(t, snap.CompletedAt)

	listed := jm.ListJobs()
	require.Len(t, listed, 1)
	assert.Equal(t, job.ID, listed[0].ID)
	assert.Same(t, job, jm.GetJob(job.ID))
	assert.Nil(t, jm.GetJob("missing"))
}

func TestJobManagerFail(t *testing.T) {
	jm := NewJobManager(2, nil)
	job, err := jm.CreateJob(context.Background(), "extract", "", "/tmp/src", []string{"a.json"}, nil)
	require.NoError(t, err)

	jm.Fail(context.Background(), job, fmt.Errorf("vision provider: %w", vision.ErrFatalAPI))
	snap := job.Snapshot()
	assert.Equal(t, JobStatusFailed, snap.Status)
	assert.True(t, strings.Contains(snap.Error, "fatal API error"))
	require.NotNil(t, snap.CompletedAt)
}
