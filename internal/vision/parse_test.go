package vision

import (
	"testing"
)

func TestParseRows(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantLen  int
		wantErr  bool
	}{
		{
			name:     "bare array",
			response: `[{"item":"1.1","descricao":"Escavação manual","unidade":"m3","quantidade":"120,50"}]`,
			wantLen:  1,
		},
		{
			name: "fenced json",
			response: "```json\n" +
				`[{"item":"1.1","descricao":"Escavação","unidade":"m3","quantidade":"10"},` +
				`{"item":"1.2","descricao":"Reaterro","unidade":"m3","quantidade":"8"}]` +
				"\n```",
			wantLen: 2,
		},
		{
			name: "prose around the array",
			response: `Aqui estão as linhas extraídas:
[{"item":"2.1","descricao":"Base de brita","unidade":"m2","quantidade":"500,00"}]
Espero que ajude.`,
			wantLen: 1,
		},
		{
			name:     "object wrapper",
			response: `{"linhas": [{"item":"1.1","descricao":"Meio-fio","unidade":"m","quantidade":"300"}]}`,
			wantLen:  1,
		},
		{
			name:     "empty array",
			response: `[]`,
			wantLen:  0,
		},
		{
			name:     "no json at all",
			response: "Não consegui identificar nenhuma tabela nas imagens.",
			wantErr:  true,
		},
		{
			name:     "broken json",
			response: `[{"item": "1.1", "descricao": "Escav`,
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := parseRows(tt.response)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseRows() = %v, want error", rows)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRows() error = %v", err)
			}
			if len(rows) != tt.wantLen {
				t.Errorf("parseRows() returned %d rows, want %d", len(rows), tt.wantLen)
			}
		})
	}
}

func TestParseRowsFieldMapping(t *testing.T) {
	rows, err := parseRows(`[{"item":"S1-1.2","descricao":"Pavimentação em CBUQ","unidade":"m²","quantidade":"1.250,75"}]`)
	if err != nil {
		t.Fatalf("parseRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("parseRows() returned %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.Item != "S1-1.2" {
		t.Errorf("Item = %q, want %q", row.Item, "S1-1.2")
	}
	if row.Descricao != "Pavimentação em CBUQ" {
		t.Errorf("Descricao = %q, want %q", row.Descricao, "Pavimentação em CBUQ")
	}
	if row.Unidade != "m²" {
		t.Errorf("Unidade = %q, want %q", row.Unidade, "m²")
	}
	if row.Quantidade != "1.250,75" {
		t.Errorf("Quantidade = %q, want %q", row.Quantidade, "1.250,75")
	}
}

func TestImageMIME(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png magic", []byte{0x89, 0x50, 0x4e, 0x47}, "image/png"},
		{"jpeg magic", []byte{0xff, 0xd8, 0xff, 0xe0}, "image/jpeg"},
		{"short input", []byte{0xff}, "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := imageMIME(tt.data); got != tt.want {
				t.Errorf("imageMIME() = %q, want %q", got, tt.want)
			}
		})
	}
}
