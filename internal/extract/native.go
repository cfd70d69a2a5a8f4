package extract

import (
	"regexp"
	"strings"

	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/normalize"
)

var (
	numericToken = regexp.MustCompile(`^[0-9][0-9.,]*$`)
	unitToken    = regexp.MustCompile(`^[\pL%][\pL0-9²³/.%]{0,5}$`)
)

// extractNativeText parses the embedded text layer line by line. Only
// lines opening with an item code are trusted; anything else on a text
// page is prose, headers or totals, except aditivo headings, which are
// noted on the stream.
func extractNativeText(src *models.DocumentSource, st *stream) {
	for _, page := range src.Pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		origin := models.TableOrigin{Page: page.Number}
		for _, line := range strings.Split(page.Text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			rec, ok := parseServiceLine(line, models.StrategyNativeText, origin, st.d)
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

// parseServiceLine splits one worksheet text line into code, description,
// unit and quantity. Shared with the OCR layout strategy, which feeds it
// reconstructed lines.
func parseServiceLine(line string, strategy models.SourceStrategy, origin models.TableOrigin, d *diagnostics) (models.ServiceRecord, bool) {
	code, rest, ok := normalize.LeadingCode(line)
	if !ok {
		return models.ServiceRecord{}, false
	}
	desc, unit, qty := splitTrailingColumns(rest)
	if desc == "" {
		return models.ServiceRecord{}, false
	}
	return buildRecord(rawRow{code: code.String(), desc: desc, unit: unit, qty: qty}, strategy, origin, d)
}

// splitTrailingColumns peels the numeric tail off a worksheet line.
// Columns run description, unit, quantity, unit price, total; prices are
// optional, so the quantity is the first token of the trailing numeric
// run (at most three tokens), and the unit is the short token right
// before it.
func splitTrailingColumns(rest string) (desc, unit, qty string) {
	fields := strings.Fields(rest)
	n := len(fields)
	numStart := n
	for numStart > 0 && n-numStart < 3 && numericToken.MatchString(fields[numStart-1]) {
		numStart--
	}
	if numStart == n {
		return rest, "", ""
	}
	qty = fields[numStart]
	if numStart > 1 && unitToken.MatchString(fields[numStart-1]) {
		unit = fields[numStart-1]
		desc = strings.Join(fields[:numStart-1], " ")
		return
	}
	desc = strings.Join(fields[:numStart], " ")
	return
}
