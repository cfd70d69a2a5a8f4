package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/licitia/atesta/internal/models"
)

func sampleResults(t *testing.T) []models.MatchResult {
	t.Helper()
	svc := NewMatchService(nil, nil)
	reqs := []models.Requirement{
		{Description: "Escavação manual de valas", QuantityMinimum: 100, Unit: "m3", AllowSum: true},
		{Description: "Serviço inexistente", QuantityMinimum: 10, Unit: "m2"},
	}
	results, err := svc.MatchRequirements(context.Background(), reqs, matchPool())
	require.NoError(t, err)
	return results
}

func TestWriteMatchReportXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	exporter := NewExporter(nil)

	require.NoError(t, exporter.WriteMatchReportXLSX(path, sampleResults(t)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Resumo", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Exigência", header)

	desc, _ := f.GetCellValue("Resumo", "A2")
	assert.Equal(t, "Escavação manual de valas", desc)
	status, _ := f.GetCellValue("Resumo", "D2")
	assert.Equal(t, "ATENDE", status)
	percent, _ := f.GetCellValue("Resumo", "E2")
	assert.Equal(t, "100", percent, "display percent is capped at 100")

	status2, _ := f.GetCellValue("Resumo", "D3")
	assert.Equal(t, "NÃO ATENDE", status2)

	// usage sheet: one row per certificate contribution plus header
	rows, err := f.GetRows("Atestados")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, "Atestado Obra A", rows[1][1])
	assert.Equal(t, "1.1", rows[1][4])
}

func TestWriteInventoryXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acervo.xlsx")
	exporter := NewExporter(nil)

	certs := []models.Certificate{
		{
			Title:   "Atestado Obra A",
			Issuer:  "Prefeitura de Niterói",
			Quality: 0.92,
			Records: []models.ServiceRecord{
				{
					Code:        &models.ItemCode{Path: []int{1, 1}},
					Description: "Escavação manual de valas",
					Unit:        "m3",
					Quantity:    80,
				},
				{
					Code:        &models.ItemCode{Prefix: models.PrefixAditivo, Path: []int{1}},
					Description: "Escavação adicional",
					Unit:        "m3",
					Quantity:    12,
				},
			},
		},
	}
	require.NoError(t, exporter.WriteInventoryXLSX(path, certs))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("Acervo", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Atestado Obra A", title)
	count, _ := f.GetCellValue("Acervo", "C2")
	assert.Equal(t, "2", count)

	rows, err := f.GetRows("Itens")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "1.1", rows[1][1])
	assert.Equal(t, "AD-1", rows[2][1])
	aditivo, _ := f.GetCellValue("Itens", "F3")
	assert.Equal(t, "sim", aditivo)
}

func TestWriteMatchReportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	exporter := NewExporter(nil)

	require.NoError(t, exporter.WriteMatchReportJSON(path, sampleResults(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var payload struct {
		ExportedAt string               `json:"exported_at"`
		Total      int                  `json:"total"`
		Results    []models.MatchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, 2, payload.Total)
	assert.NotEmpty(t, payload.ExportedAt)
	require.Len(t, payload.Results, 2)
	assert.Equal(t, models.StatusAtende, payload.Results[0].Status)
}

func TestWriteInventoryJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acervo.json")
	exporter := NewExporter(nil)

	require.NoError(t, exporter.WriteInventoryJSON(path, matchPool()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var payload struct {
		Total        int `json:"total"`
		Certificates []struct {
			Title   string                 `json:"title"`
			Records []models.ServiceRecord `json:"records"`
		} `json:"certificates"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, 2, payload.Total)
	require.Len(t, payload.Certificates, 2)
	assert.Equal(t, "Atestado Obra A", payload.Certificates[0].Title)
	assert.Len(t, payload.Certificates[0].Records, 1)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "ATENDE", statusLabel(models.StatusAtende))
	assert.Equal(t, "PARCIAL", statusLabel(models.StatusParcial))
	assert.Equal(t, "NÃO ATENDE", statusLabel(models.StatusNaoAtende))
	assert.Equal(t, "outro", statusLabel(models.MatchStatus("outro")))
}

func TestRecordCodes(t *testing.T) {
	records := []models.ServiceRecord{
		{Code: &models.ItemCode{Path: []int{1, 2}}},
		{Code: nil},
		{Code: &models.ItemCode{Prefix: models.PrefixRestart, PrefixNumber: 1, Path: []int{3}}},
	}
	assert.Equal(t, "1.2, -, S1-3", recordCodes(records))
	assert.Equal(t, "", recordCodes(nil))
}
