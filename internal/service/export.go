package service

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/licitia/atesta/internal/metrics"
	"github.com/licitia/atesta/internal/models"
)

// Exporter writes match reports and certificate inventories to XLSX and
// JSON files.
type Exporter struct {
	metrics *metrics.Collector
}

// NewExporter creates a new exporter. collector may be nil.
func NewExporter(collector *metrics.Collector) *Exporter {
	return &Exporter{metrics: collector}
}

func (e *Exporter) trackExport(start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordTiming(metrics.OpExport, time.Since(start))
	}
}

// WriteMatchReportXLSX writes match results to an XLSX workbook: a
// summary sheet with one row per requirement and a usage sheet with one
// row per certificate contribution.
func (e *Exporter) WriteMatchReportXLSX(path string, results []models.MatchResult) error {
	defer e.trackExport(time.Now())

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	summary := "Resumo"
	index, err := f.NewSheet(summary)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	writeHeaderRow(f, summary, headerStyle, []string{
		"Exigência", "Unidade", "Quantidade Mínima", "Status",
		"Percentual (%)", "Quantidade Somada", "Atestados Usados",
	})
	for i, r := range results {
		row := i + 2
		f.SetCellValue(summary, fmt.Sprintf("A%d", row), r.Requirement.Description)
		f.SetCellValue(summary, fmt.Sprintf("B%d", row), r.Requirement.Unit)
		f.SetCellValue(summary, fmt.Sprintf("C%d", row), r.Requirement.QuantityMinimum)
		f.SetCellValue(summary, fmt.Sprintf("D%d", row), statusLabel(r.Status))
		f.SetCellValue(summary, fmt.Sprintf("E%d", row), displayPercent(r.PercentualTotal))
		f.SetCellValue(summary, fmt.Sprintf("F%d", row), r.SumQuantities)
		f.SetCellValue(summary, fmt.Sprintf("G%d", row), len(r.Certificates))
	}
	f.SetColWidth(summary, "A", "A", 60)
	f.SetColWidth(summary, "B", "G", 18)

	usage := "Atestados"
	if _, err := f.NewSheet(usage); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	writeHeaderRow(f, usage, headerStyle, []string{
		"Exigência", "Atestado", "Quantidade Utilizada",
		"Cobertura (%)", "Itens Correspondentes",
	})
	row := 2
	for _, r := range results {
		for _, use := range r.Certificates {
			f.SetCellValue(usage, fmt.Sprintf("A%d", row), r.Requirement.Description)
			f.SetCellValue(usage, fmt.Sprintf("B%d", row), use.CertificateRef)
			f.SetCellValue(usage, fmt.Sprintf("C%d", row), use.QuantityUsed)
			f.SetCellValue(usage, fmt.Sprintf("D%d", row), displayPercent(use.CoveragePercent))
			f.SetCellValue(usage, fmt.Sprintf("E%d", row), recordCodes(use.MatchedRecords))
			row++
		}
	}
	f.SetColWidth(usage, "A", "B", 50)
	f.SetColWidth(usage, "C", "E", 22)

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// WriteInventoryXLSX writes the certificate inventory to an XLSX
// workbook: one sheet with a row per certificate, one with a row per
// service record.
func (e *Exporter) WriteInventoryXLSX(path string, certs []models.Certificate) error {
	defer e.trackExport(time.Now())

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	overview := "Acervo"
	index, err := f.NewSheet(overview)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	writeHeaderRow(f, overview, headerStyle, []string{
		"Atestado", "Emissor", "Itens", "Qualidade", "Estratégia", "Criado",
	})
	for i, c := range certs {
		row := i + 2
		f.SetCellValue(overview, fmt.Sprintf("A%d", row), c.Title)
		f.SetCellValue(overview, fmt.Sprintf("B%d", row), c.Issuer)
		f.SetCellValue(overview, fmt.Sprintf("C%d", row), len(c.Records))
		f.SetCellValue(overview, fmt.Sprintf("D%d", row), c.Quality)
		f.SetCellValue(overview, fmt.Sprintf("E%d", row), string(c.Strategy))
		if !c.Created.IsZero() {
			f.SetCellValue(overview, fmt.Sprintf("F%d", row), c.Created.Format("2006-01-02"))
		}
	}
	f.SetColWidth(overview, "A", "B", 45)
	f.SetColWidth(overview, "C", "F", 14)

	items := "Itens"
	if _, err := f.NewSheet(items); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	writeHeaderRow(f, items, headerStyle, []string{
		"Atestado", "Item", "Descrição", "Unidade", "Quantidade", "Aditivo",
	})
	row := 2
	for _, c := range certs {
		for _, rec := range c.Records {
			f.SetCellValue(items, fmt.Sprintf("A%d", row), c.Title)
			if rec.Code != nil {
				f.SetCellValue(items, fmt.Sprintf("B%d", row), rec.Code.String())
			}
			f.SetCellValue(items, fmt.Sprintf("C%d", row), rec.Description)
			f.SetCellValue(items, fmt.Sprintf("D%d", row), rec.Unit)
			f.SetCellValue(items, fmt.Sprintf("E%d", row), rec.Quantity)
			if rec.Code != nil && rec.Code.Prefix == models.PrefixAditivo {
				f.SetCellValue(items, fmt.Sprintf("F%d", row), "sim")
			}
			row++
		}
	}
	f.SetColWidth(items, "A", "A", 45)
	f.SetColWidth(items, "C", "C", 60)
	f.SetColWidth(items, "B", "B", 12)
	f.SetColWidth(items, "D", "F", 12)

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save inventory: %w", err)
	}
	return nil
}

// WriteMatchReportJSON writes match results to an indented JSON file.
func (e *Exporter) WriteMatchReportJSON(path string, results []models.MatchResult) error {
	defer e.trackExport(time.Now())
	return writeJSON(path, map[string]any{
		"exported_at": time.Now().Format(time.RFC3339),
		"total":       len(results),
		"results":     results,
	})
}

// WriteInventoryJSON writes the certificate inventory to an indented
// JSON file.
func (e *Exporter) WriteInventoryJSON(path string, certs []models.Certificate) error {
	defer e.trackExport(time.Now())
	return writeJSON(path, map[string]any{
		"exported_at":  time.Now().Format(time.RFC3339),
		"total":        len(certs),
		"certificates": certs,
	})
}

func writeJSON(path string, payload any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

func writeHeaderRow(f *excelize.File, sheet string, style int, headers []string) {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, style)
	}
}

// statusLabel renders a match status for human-facing reports.
func statusLabel(s models.MatchStatus) string {
	switch s {
	case models.StatusAtende:
		return "ATENDE"
	case models.StatusParcial:
		return "PARCIAL"
	case models.StatusNaoAtende:
		return "NÃO ATENDE"
	default:
		return string(s)
	}
}

// displayPercent caps coverage at 100 for reports; the engine keeps the
// raw value.
func displayPercent(p float64) float64 {
	if p > 100 {
		return 100
	}
	return p
}

// recordCodes joins the item codes of matched records, falling back to a
// dash for records without one.
func recordCodes(records []models.ServiceRecord) string {
	codes := make([]string, 0, len(records))
	for _, r := range records {
		if r.Code != nil {
			codes = append(codes, r.Code.String())
		} else {
			codes = append(codes, "-")
		}
	}
	return strings.Join(codes, ", ")
}
