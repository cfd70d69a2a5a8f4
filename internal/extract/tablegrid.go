package extract

import (
	"strings"

	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/normalize"
)

// columnRoles maps worksheet columns to record fields. -1 means the
// column was not identified.
type columnRoles struct {
	item int
	desc int
	unit int
	qty  int
}

func noRoles() columnRoles { return columnRoles{item: -1, desc: -1, unit: -1, qty: -1} }

func (c columnRoles) usable() bool { return c.desc >= 0 && c.qty >= 0 }

var (
	itemHeaders = map[string]bool{"ITEM": true, "CODIGO": true, "COD": true, "REF": true}
	descHeaders = map[string]bool{"DESCRICAO": true, "DISCRIMINACAO": true, "ESPECIFICACAO": true, "SERVICO": true, "SERVICOS": true}
	unitHeaders = map[string]bool{"UNID": true, "UND": true, "UN": true, "UNIDADE": true}
	qtyHeaders  = map[string]bool{"QUANT": true, "QTD": true, "QTDE": true, "QUANTIDADE": true}
)

// extractTableGrid walks detected table structures and maps their
// columns to record fields, by header when one exists and by positional
// statistics otherwise.
func extractTableGrid(src *models.DocumentSource, st *stream) {
	planilha := 0
	for _, page := range src.Pages {
		for _, table := range page.Tables {
			if len(table.Rows) == 0 {
				continue
			}
			origin := models.TableOrigin{Page: page.Number, Planilha: planilha}
			planilha++
			extractGridRows(table.Rows, models.StrategyTableGrid, origin, st)
		}
	}
}

// extractGridRows turns one grid into records on the stream. Shared with
// the OCR grid strategy, which reconstructs the same shape from word
// geometry.
func extractGridRows(rows [][]string, strategy models.SourceStrategy, origin models.TableOrigin, st *stream) {
	roles, headerIdx := detectColumns(rows)
	if !roles.usable() {
		roles = inferColumns(rows)
	}
	if !roles.usable() {
		st.d.addf("%s: page %d: could not identify description and quantity columns", strategy, origin.Page)
		return
	}

	for i, row := range rows {
		if i <= headerIdx {
			continue
		}
		if isNoiseRow(row) || isHeaderRow(row) {
			if isAditivoMarker(strings.Join(row, " ")) {
				st.noteAditivo()
			}
			continue
		}
		raw := rawRow{
			code: cellAt(row, roles.item),
			desc: cellAt(row, roles.desc),
			unit: cellAt(row, roles.unit),
			qty:  cellAt(row, roles.qty),
		}
		// No code and no quantity: a section heading, subtotal or an
		// aditivo marker, never a service row.
		if strings.TrimSpace(raw.code) == "" && strings.TrimSpace(raw.qty) == "" {
			if isAditivoMarker(strings.Join(row, " ")) {
				st.noteAditivo()
			}
			continue
		}
		rec, ok := buildRecord(raw, strategy, origin, st.d)
		if !ok {
			continue
		}
		st.add(rec)
	}
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// detectColumns looks for a header row among the first rows and reads
// the column roles off it.
func detectColumns(rows [][]string) (columnRoles, int) {
	roles := noRoles()
	limit := min(len(rows), 5)
	for i := 0; i < limit; i++ {
		if !isHeaderRow(rows[i]) {
			continue
		}
		for col, cell := range rows[i] {
			n := normalize.Text(cell)
			if n == "" {
				continue
			}
			first := strings.Fields(n)[0]
			switch {
			case roles.item < 0 && itemHeaders[first]:
				roles.item = col
			case roles.desc < 0 && descHeaders[first]:
				roles.desc = col
			case roles.unit < 0 && unitHeaders[first]:
				roles.unit = col
			case roles.qty < 0 && qtyHeaders[first]:
				roles.qty = col
			}
		}
		return roles, i
	}
	return roles, -1
}

// inferColumns assigns roles from per-column statistics when no header
// survived extraction: the item column parses as codes, the description
// column is the longest, the unit column is short uppercase-ish text,
// and the quantity is the first numeric column to its right.
func inferColumns(rows [][]string) columnRoles {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	if width < 2 {
		return noRoles()
	}

	codeRatio := make([]float64, width)
	numRatio := make([]float64, width)
	unitRatio := make([]float64, width)
	avgLen := make([]float64, width)
	counts := make([]int, width)

	for _, row := range rows {
		for col := 0; col < width && col < len(row); col++ {
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				continue
			}
			counts[col]++
			avgLen[col] += float64(len(cell))
			if _, ok := normalize.ParseCode(cell); ok {
				codeRatio[col]++
			}
			if numericToken.MatchString(cell) {
				numRatio[col]++
			}
			if unitToken.MatchString(cell) {
				unitRatio[col]++
			}
		}
	}
	for col := 0; col < width; col++ {
		if counts[col] == 0 {
			continue
		}
		n := float64(counts[col])
		codeRatio[col] /= n
		numRatio[col] /= n
		unitRatio[col] /= n
		avgLen[col] /= n
	}

	// Codes look numeric too, so the item column is the leftmost one
	// that parses as codes; quantities with decimal commas never do.
	roles := noRoles()
	for col := 0; col < width; col++ {
		if codeRatio[col] >= 0.5 {
			roles.item = col
			break
		}
	}
	for col := 0; col < width; col++ {
		if col == roles.item || numRatio[col] >= 0.5 {
			continue
		}
		if roles.desc < 0 || avgLen[col] > avgLen[roles.desc] {
			roles.desc = col
		}
	}
	for col := 0; col < width; col++ {
		if col == roles.item || col == roles.desc {
			continue
		}
		if unitRatio[col] >= 0.5 && numRatio[col] < 0.5 {
			roles.unit = col
			break
		}
	}
	start := max(roles.unit, roles.desc) + 1
	for col := start; col < width; col++ {
		if numRatio[col] >= 0.5 {
			roles.qty = col
			break
		}
	}
	return roles
}
