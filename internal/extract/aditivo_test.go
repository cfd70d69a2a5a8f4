package extract

import (
	"testing"

	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/normalize"
)

// rec builds a canonical-shaped record for pipeline tests. An empty code
// string yields a codeless record.
func rec(code, desc, unit string, qty float64) models.ServiceRecord {
	var parsed *models.ItemCode
	if code != "" {
		c, ok := normalize.ParseCode(code)
		if !ok {
			panic("bad code in test: " + code)
		}
		parsed = c
	}
	return models.ServiceRecord{
		Code:                  parsed,
		Description:           desc,
		NormalizedDescription: normalize.Description(desc),
		Unit:                  unit,
		CanonicalUnit:         normalize.Unit(unit),
		Quantity:              qty,
		Strategy:              models.StrategyNativeText,
		Origin:                models.TableOrigin{Page: 1},
	}
}

func TestTagRestartSections(t *testing.T) {
	records := []models.ServiceRecord{
		rec("1.1", "Escavação manual", "m3", 100),
		rec("1.2", "Reaterro compactado", "m3", 80),
		rec("2.1", "Alvenaria de vedação", "m2", 200),
		rec("2.2", "Chapisco", "m2", 200),
		rec("3.1", "Pintura látex", "m2", 150),
		// numbering drops back to the top: a second worksheet
		rec("1.1", "Escavação manual", "m3", 40),
		rec("1.2", "Reaterro compactado", "m3", 30),
		rec("2.1", "Alvenaria de vedação", "m2", 90),
		rec("2.2", "Chapisco", "m2", 90),
	}

	applySections(records, nil, DefaultConfig())

	for i := 0; i < 5; i++ {
		if records[i].Code.Prefix != models.PrefixNone {
			t.Errorf("record %d: prefix = %v, want none", i, records[i].Code.Prefix)
		}
	}
	for i := 5; i < 9; i++ {
		if records[i].Code.Prefix != models.PrefixRestart || records[i].Code.PrefixNumber != 1 {
			t.Errorf("record %d: code = %s, want S1- prefix", i, records[i].Code)
		}
	}
	if got := records[5].Code.String(); got != "S1-1.1" {
		t.Errorf("restarted code renders as %q, want S1-1.1", got)
	}
}

func TestTagRestartSectionsWithinFirstChapter(t *testing.T) {
	records := []models.ServiceRecord{
		rec("1.1", "Escavação manual", "m3", 120),
		rec("1.2", "Reaterro compactado", "m3", 95),
		rec("1.3", "Apiloamento de fundo de vala", "m2", 60),
		// the numbering never left chapter 1, then starts over
		rec("1.1", "Escavação manual", "m3", 45),
		rec("1.2", "Reaterro compactado", "m3", 38),
		rec("1.3", "Apiloamento de fundo de vala", "m2", 22),
		rec("1.4", "Lastro de concreto magro", "m3", 8),
		rec("1.5", "Alvenaria de embasamento", "m3", 12),
		rec("1.6", "Impermeabilização de baldrame", "m2", 30),
		rec("1.7", "Chapisco", "m2", 130),
		rec("1.8", "Emboço", "m2", 130),
		rec("1.9", "Pintura látex", "m2", 130),
	}

	applySections(records, nil, DefaultConfig())

	for i := 0; i < 3; i++ {
		if records[i].Code.Prefix != models.PrefixNone {
			t.Errorf("record %d: prefix = %v, want none", i, records[i].Code.Prefix)
		}
	}
	for i := 3; i < 12; i++ {
		if records[i].Code.Prefix != models.PrefixRestart || records[i].Code.PrefixNumber != 1 {
			t.Errorf("record %d: code = %s, want S1- prefix", i, records[i].Code)
		}
	}
	if got := records[3].Code.String(); got != "S1-1.1" {
		t.Errorf("restarted code renders as %q, want S1-1.1", got)
	}
}

func TestNoRestartWithoutOverlap(t *testing.T) {
	records := []models.ServiceRecord{
		rec("1.1", "Serviços preliminares", "un", 1),
		rec("2.5", "Estrutura metálica", "kg", 500),
		rec("3.2", "Cobertura em telha", "m2", 300),
		rec("4.9", "Limpeza final", "m2", 300),
		// drops to 1.x again but shares only one path with the primary
		rec("1.1", "Administração local", "mes", 6),
		rec("1.2", "Mobilização", "un", 1),
		rec("1.3", "Desmobilização", "un", 1),
		rec("1.4", "Placa de obra", "m2", 6),
	}

	applySections(records, nil, DefaultConfig())

	for i, r := range records {
		if r.Code.Prefix != models.PrefixNone {
			t.Errorf("record %d: prefix = %v, want none", i, r.Code.Prefix)
		}
	}
}

func TestNoRestartWhenWindowTooShort(t *testing.T) {
	records := []models.ServiceRecord{
		rec("1.1", "Escavação", "m3", 10),
		rec("2.1", "Alvenaria", "m2", 20),
		rec("3.1", "Pintura", "m2", 30),
		rec("1.1", "Escavação", "m3", 5),
		rec("1.2", "Reaterro", "m3", 5),
	}

	applySections(records, nil, DefaultConfig())

	for i, r := range records {
		if r.Code.Prefix != models.PrefixNone {
			t.Errorf("record %d: prefix = %v, want none", i, r.Code.Prefix)
		}
	}
}

func TestTagAditivoSingleBlock(t *testing.T) {
	records := []models.ServiceRecord{
		rec("1.1", "Alvenaria", "m2", 100),
		rec("1.2", "Chapisco", "m2", 100),
		rec("1.1", "Alvenaria reforçada", "m2", 25),
		rec("1.2", "Chapisco fino", "m2", 25),
	}

	applySections(records, []int{2}, DefaultConfig())

	if records[0].Code.Prefix != models.PrefixNone || records[1].Code.Prefix != models.PrefixNone {
		t.Error("records before the marker must stay untagged")
	}
	for i := 2; i < 4; i++ {
		if records[i].Code.Prefix != models.PrefixAditivo {
			t.Fatalf("record %d: prefix = %v, want aditivo", i, records[i].Code.Prefix)
		}
	}
	if got := records[2].Code.String(); got != "AD-1.1" {
		t.Errorf("aditivo code renders as %q, want AD-1.1", got)
	}
}

func TestTagAditivoNumbersMultipleBlocks(t *testing.T) {
	records := []models.ServiceRecord{
		rec("1.1", "Alvenaria", "m2", 100),
		rec("1.1", "Reforço estrutural", "kg", 40),
		rec("2.1", "Pintura adicional", "m2", 15),
		rec("1.1", "Drenagem complementar", "m", 60),
	}

	applySections(records, []int{1, 3}, DefaultConfig())

	if got := records[1].Code.String(); got != "AD1-1.1" {
		t.Errorf("first block code = %q, want AD1-1.1", got)
	}
	if got := records[2].Code.String(); got != "AD1-2.1" {
		t.Errorf("first block code = %q, want AD1-2.1", got)
	}
	if got := records[3].Code.String(); got != "AD2-1.1" {
		t.Errorf("second block code = %q, want AD2-1.1", got)
	}
}

func TestSectionTaggingKeepsParsedPrefixes(t *testing.T) {
	records := []models.ServiceRecord{
		rec("1.1", "Alvenaria", "m2", 100),
		rec("S2-4.1", "Pavimentação", "m2", 500),
		rec("AD-2.1", "Sinalização", "un", 12),
	}

	applySections(records, []int{0}, DefaultConfig())

	if got := records[1].Code.String(); got != "S2-4.1" {
		t.Errorf("parsed restart prefix changed: %q", got)
	}
	if got := records[2].Code.String(); got != "AD-2.1" {
		t.Errorf("parsed aditivo prefix changed: %q", got)
	}
	if records[0].Code.Prefix != models.PrefixAditivo {
		t.Errorf("unprefixed record inside the block should be tagged, got %v", records[0].Code.Prefix)
	}
}
