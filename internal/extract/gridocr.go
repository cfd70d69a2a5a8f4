package extract

import (
	"sort"
	"strings"

	"github.com/licitia/atesta/internal/models"
)

// extractGridOCR rebuilds table structure from OCR word geometry: words
// cluster into rows by vertical center, rows split into cells at
// horizontal gaps, and the resulting grid goes through the same column
// mapping as detected tables.
func extractGridOCR(src *models.DocumentSource, st *stream) {
	planilha := 0
	for _, page := range src.Pages {
		if len(page.Words) == 0 {
			continue
		}
		rows := clusterRows(page.Words)
		grid := make([][]string, 0, len(rows))
		for _, row := range rows {
			grid = append(grid, splitCells(row))
		}
		if len(grid) == 0 {
			continue
		}
		origin := models.TableOrigin{Page: page.Number, Planilha: planilha}
		planilha++
		extractGridRows(grid, models.StrategyGridOCR, origin, st)
	}
}

// extractOCRLayout reconstructs plain text lines from word geometry and
// parses them like native text. It is the lowest-fidelity strategy: no
// cell boundaries, only reading order.
func extractOCRLayout(src *models.DocumentSource, st *stream) {
	for _, page := range src.Pages {
		if len(page.Words) == 0 {
			continue
		}
		origin := models.TableOrigin{Page: page.Number}
		for _, row := range clusterRows(page.Words) {
			parts := make([]string, 0, len(row))
			for _, w := range row {
				parts = append(parts, w.Text)
			}
			line := strings.TrimSpace(strings.Join(parts, " "))
			if line == "" {
				continue
			}
			rec, ok := parseServiceLine(line, models.StrategyOCRLayout, origin, st.d)
			if !ok {
				if isAditivoMarker(line) {
					st.noteAditivo()
				}
				continue
			}
			st.add(rec)
		}
	}
}

// clusterRows groups words into visual rows by vertical center, with a
// tolerance derived from the median word height, then orders each row
// left to right.
func clusterRows(words []models.Word) [][]models.Word {
	if len(words) == 0 {
		return nil
	}
	sorted := make([]models.Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		return centerY(sorted[i]) < centerY(sorted[j])
	})

	tol := medianHeight(sorted) * 0.6
	if tol <= 0 {
		tol = 1
	}

	var rows [][]models.Word
	var current []models.Word
	var rowY float64
	for _, w := range sorted {
		y := centerY(w)
		if current == nil || y-rowY > tol {
			if current != nil {
				rows = append(rows, current)
			}
			current = []models.Word{w}
			rowY = y
			continue
		}
		current = append(current, w)
	}
	if current != nil {
		rows = append(rows, current)
	}

	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X0 < row[j].X0 })
	}
	return rows
}

// splitCells joins a row's words into cells, breaking at horizontal gaps
// wider than the typical intra-cell spacing.
func splitCells(row []models.Word) []string {
	if len(row) == 0 {
		return nil
	}
	gap := medianHeight(row) * 1.5
	if gap <= 0 {
		gap = 1
	}
	var cells []string
	var cell []string
	prevEnd := row[0].X0
	for i, w := range row {
		if i > 0 && w.X0-prevEnd > gap {
			cells = append(cells, strings.Join(cell, " "))
			cell = cell[:0]
		}
		cell = append(cell, w.Text)
		if w.X1 > prevEnd {
			prevEnd = w.X1
		}
	}
	cells = append(cells, strings.Join(cell, " "))
	return cells
}

func centerY(w models.Word) float64 { return (w.Y0 + w.Y1) / 2 }

func medianHeight(words []models.Word) float64 {
	if len(words) == 0 {
		return 0
	}
	heights := make([]float64, 0, len(words))
	for _, w := range words {
		heights = append(heights, w.Y1-w.Y0)
	}
	sort.Float64s(heights)
	return heights[len(heights)/2]
}
