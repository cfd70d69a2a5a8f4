package extract

import (
	"testing"

	"github.com/licitia/atesta/internal/models"
)

// wordAt builds an OCR word box with a height of 4 units.
func wordAt(text string, x0, x1, y float64) models.Word {
	return models.Word{Text: text, X0: x0, Y0: y, X1: x1, Y1: y + 4}
}

func ocrWords() []models.Word {
	return []models.Word{
		wordAt("1.1", 0, 10, 10),
		wordAt("Escavação", 30, 70, 10),
		wordAt("manual", 72, 95, 10),
		wordAt("m3", 140, 150, 10),
		wordAt("120,50", 180, 205, 10),

		wordAt("1.2", 0, 10, 20),
		wordAt("Reaterro", 30, 62, 20),
		wordAt("compactado", 64, 98, 20),
		wordAt("m3", 140, 150, 20),
		wordAt("98,00", 180, 200, 20),
	}
}

func TestClusterRows(t *testing.T) {
	rows := clusterRows(ocrWords())
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if len(rows[0]) != 5 || rows[0][0].Text != "1.1" {
		t.Errorf("first row = %v", rows[0])
	}
	if rows[1][1].Text != "Reaterro" {
		t.Errorf("second row starts with %q, want Reaterro after code", rows[1][1].Text)
	}
}

func TestSplitCells(t *testing.T) {
	rows := clusterRows(ocrWords())
	cells := splitCells(rows[0])
	want := []string{"1.1", "Escavação manual", "m3", "120,50"}
	if len(cells) != len(want) {
		t.Fatalf("got %d cells %v, want %v", len(cells), cells, want)
	}
	for i := range want {
		if cells[i] != want[i] {
			t.Errorf("cell %d = %q, want %q", i, cells[i], want[i])
		}
	}
}

func TestExtractGridOCR(t *testing.T) {
	src := &models.DocumentSource{
		Pages: []models.Page{{Number: 3, Words: ocrWords()}},
	}
	st := &stream{d: &diagnostics{}}
	extractGridOCR(src, st)

	if len(st.records) != 2 {
		t.Fatalf("got %d records, want 2 (diagnostics: %v)", len(st.records), st.d.notes)
	}
	first := st.records[0]
	if first.Code == nil || first.Code.String() != "1.1" {
		t.Errorf("first record code = %v, want 1.1", first.Code)
	}
	if first.Quantity != 120.50 || first.CanonicalUnit != "M3" {
		t.Errorf("first record = %+v", first)
	}
	if first.Strategy != models.StrategyGridOCR {
		t.Errorf("strategy = %q, want %q", first.Strategy, models.StrategyGridOCR)
	}
	if first.Origin.Page != 3 {
		t.Errorf("origin page = %d, want 3", first.Origin.Page)
	}
}

func TestExtractOCRLayout(t *testing.T) {
	src := &models.DocumentSource{
		Pages: []models.Page{{Number: 1, Words: ocrWords()}},
	}
	st := &stream{d: &diagnostics{}}
	extractOCRLayout(src, st)

	if len(st.records) != 2 {
		t.Fatalf("got %d records, want 2", len(st.records))
	}
	if st.records[0].NormalizedDescription != "ESCAVACAO MANUAL" {
		t.Errorf("normalized description = %q, want ESCAVACAO MANUAL", st.records[0].NormalizedDescription)
	}
	if st.records[0].Strategy != models.StrategyOCRLayout {
		t.Errorf("strategy = %q", st.records[0].Strategy)
	}
}
