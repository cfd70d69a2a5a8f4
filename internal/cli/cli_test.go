package cli

import (
	"testing"
	"time"

	"github.com/licitia/atesta/internal/client"
	"github.com/licitia/atesta/internal/models"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short stays", "escavação", 20, "escavação"},
		{"exact stays", "abcd", 4, "abcd"},
		{"long gets ellipsis", "fornecimento e aplicação de concreto", 20, "fornecimento e ap..."},
		{"multibyte counts runes", "pavimentação asfáltica em vias urbanas", 15, "pavimentação..."},
		{"tiny max clamps", "abcdefgh", 1, "a..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		status models.MatchStatus
		want   string
	}{
		{models.StatusAtende, "ATENDE"},
		{models.StatusParcial, "PARCIAL"},
		{models.StatusNaoAtende, "NÃO ATENDE"},
		{models.MatchStatus("outro"), "outro"},
	}

	for _, tt := range tests {
		if got := statusLabel(tt.status); got != tt.want {
			t.Errorf("statusLabel(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestToModelCertificates(t *testing.T) {
	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	in := []client.Certificate{
		{
			ID:         "certificate:obra-a",
			Title:      "Obra A",
			Issuer:     "Prefeitura de Niterói",
			SourcePath: "/srv/sources/obra-a.json",
			Records: []models.ServiceRecord{
				{Description: "Escavação manual", Unit: "m3", Quantity: 120},
			},
			Quality:     0.91,
			Strategy:    models.StrategyNativeText,
			Diagnostics: []string{"page 3: dropped row without quantity"},
			Created:     created,
			Updated:     created,
		},
	}

	out := toModelCertificates(in)
	if len(out) != 1 {
		t.Fatalf("got %d certificates, want 1", len(out))
	}

	c := out[0]
	if c.Title != "Obra A" || c.Issuer != "Prefeitura de Niterói" {
		t.Errorf("title/issuer not carried over: %+v", c)
	}
	if c.SourcePath != "/srv/sources/obra-a.json" {
		t.Errorf("source path = %q", c.SourcePath)
	}
	if len(c.Records) != 1 || c.Records[0].Quantity != 120 {
		t.Errorf("records not carried over: %+v", c.Records)
	}
	if c.Quality != 0.91 || c.Strategy != models.StrategyNativeText {
		t.Errorf("quality/strategy not carried over: %+v", c)
	}
	if len(c.Diagnostics) != 1 {
		t.Errorf("diagnostics not carried over: %+v", c.Diagnostics)
	}
	if !c.Created.Equal(created) || !c.Updated.Equal(created) {
		t.Errorf("timestamps not carried over: created %v updated %v", c.Created, c.Updated)
	}
	if c.ID.ID != nil {
		t.Errorf("wire id must not produce a record id, got %v", c.ID)
	}
}

func TestToModelCertificatesEmpty(t *testing.T) {
	if got := toModelCertificates(nil); len(got) != 0 {
		t.Errorf("got %d certificates from nil input", len(got))
	}
}
