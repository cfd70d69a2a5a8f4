package extract

import (
	"strings"

	"github.com/licitia/atesta/internal/normalize"
)

// Header vocabulary of Brazilian budget worksheets. Matching happens on
// normalized text, so accents are already folded.
var headerTokens = map[string]bool{
	"ITEM":          true,
	"CODIGO":        true,
	"COD":           true,
	"FONTE":         true,
	"SINAPI":        true,
	"SICRO":         true,
	"DESCRICAO":     true,
	"DISCRIMINACAO": true,
	"ESPECIFICACAO": true,
	"SERVICO":       true,
	"SERVICOS":      true,
	"UNID":          true,
	"UND":           true,
	"UN":            true,
	"UNIDADE":       true,
	"QUANT":         true,
	"QTD":           true,
	"QTDE":          true,
	"QUANTIDADE":    true,
	"PRECO":         true,
	"VALOR":         true,
	"UNITARIO":      true,
	"TOTAL":         true,
	"BDI":           true,
}

// Lines that open with these are worksheet furniture, not services.
var noisePrefixes = []string{
	"TOTAL",
	"SUBTOTAL",
	"SUB TOTAL",
	"PLANILHA",
	"ORCAMENTO",
	"CRONOGRAMA",
	"OBRA",
	"OBJETO",
	"CONTRATANTE",
	"CONTRATADA",
	"PROPONENTE",
	"PREFEITURA",
	"CNPJ",
	"ENDERECO",
	"FOLHA",
	"PAGINA",
	"PAG",
	"ASSINATURA",
	"RESPONSAVEL TECNICO",
	"CREA",
	"CAU",
	"ART N",
	"DATA BASE",
	"ENCARGOS SOCIAIS",
	"BDI",
	"LOCAL",
	"REFERENCIA",
}

// isHeaderRow reports whether a table row is the column header of a
// worksheet. Two or more cells matching the header vocabulary is enough;
// a single hit would misfire on descriptions that contain "TOTAL".
func isHeaderRow(cells []string) bool {
	hits, filled := 0, 0
	for _, cell := range cells {
		n := normalize.Text(cell)
		if n == "" {
			continue
		}
		filled++
		for _, tok := range strings.Fields(n) {
			if headerTokens[tok] {
				hits++
				break
			}
		}
	}
	return filled > 0 && hits >= 2
}

// isNoiseLine reports whether a free-text line is worksheet furniture.
func isNoiseLine(s string) bool {
	n := normalize.Text(s)
	if n == "" {
		return true
	}
	for _, p := range noisePrefixes {
		if n == p || strings.HasPrefix(n, p+" ") {
			return true
		}
	}
	return false
}

// isNoiseRow reports whether a whole table row carries no service data.
func isNoiseRow(cells []string) bool {
	joined := strings.TrimSpace(strings.Join(cells, " "))
	if joined == "" {
		return true
	}
	filled := 0
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			filled++
		}
	}
	if filled == 1 {
		return isNoiseLine(joined)
	}
	return false
}
