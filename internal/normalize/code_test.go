package normalize

import (
	"testing"

	"github.com/licitia/atesta/internal/models"
)

func TestParseCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string // rendered canonical form; "" means not a code
	}{
		{"empty", "", ""},
		{"simple", "1", "1"},
		{"dotted", "1.2.3", "1.2.3"},
		{"spaced path", "1 2 3", "1.2.3"},
		{"mixed separators", "1. 2", "1.2"},
		{"trailing dot", "2.1.", "2.1"},
		{"restart prefix", "S1-4.1", "S1-4.1"},
		{"restart two digits", "S12-1", "S12-1"},
		{"aditivo bare", "AD-2", "AD-2"},
		{"aditivo numbered", "AD2-1.5", "AD2-1.5"},
		{"suffix", "2.5-A", "2.5-A"},
		{"suffix lowercase", "2.5-a", "2.5-A"},
		{"suffix spaced dash", "2.5 - B", "2.5-B"},
		{"lowercase prefix", "s1-3", "S1-3"},
		{"not a code words", "ITEM", ""},
		{"letters in path", "1.a.2", ""},
		{"too deep", "1.1.1.1.1.1.1.1.1", ""},
		{"segment too long", "12345", ""},
		{"date-like garbage", "12/2023", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := ParseCode(tt.in)
			if tt.want == "" {
				if ok {
					t.Fatalf("ParseCode(%q) = %v, want no code", tt.in, code)
				}
				return
			}
			if !ok {
				t.Fatalf("ParseCode(%q) failed, want %q", tt.in, tt.want)
			}
			if got := code.String(); got != tt.want {
				t.Errorf("ParseCode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseCodePrefixClasses(t *testing.T) {
	code, ok := ParseCode("S2-1.1")
	if !ok || code.Prefix != models.PrefixRestart || code.PrefixNumber != 2 {
		t.Errorf("S2-1.1: got %+v, want restart section 2", code)
	}

	code, ok = ParseCode("AD-1")
	if !ok || code.Prefix != models.PrefixAditivo || code.PrefixNumber != 0 {
		t.Errorf("AD-1: got %+v, want aditivo section 0", code)
	}

	code, ok = ParseCode("AD3-1")
	if !ok || code.Prefix != models.PrefixAditivo || code.PrefixNumber != 3 {
		t.Errorf("AD3-1: got %+v, want aditivo section 3", code)
	}
}

func TestLeadingCode(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantCode string
		wantRest string
		wantOK   bool
	}{
		{"code and description", "1.2.3 Execução de Base", "1.2.3", "Execução de Base", true},
		{"dash separator", "4.1 - Limpeza do terreno", "4.1", "Limpeza do terreno", true},
		{"extra spaces", "  2.1   Drenagem superficial", "2.1", "Drenagem superficial", true},
		{"restart prefix", "S1-1.2 Base de brita", "S1-1.2", "Base de brita", true},
		{"no code", "Execução de Base", "", "", false},
		{"code only", "1.2.3", "", "", false},
		{"digits after code rejected", "1 2 3 Execução", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, rest, ok := LeadingCode(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("LeadingCode(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got := code.String(); got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
			if rest != tt.wantRest {
				t.Errorf("rest = %q, want %q", rest, tt.wantRest)
			}
		})
	}
}
