package extract

import "github.com/licitia/atesta/internal/models"

// applySections tags restarted numbering sections (S<n>-) and aditivo
// blocks (AD-, AD<n>-) on an ordered record stream. Tagging only rewrites
// codes that carry no prefix; codes that arrived prefixed in the source
// text keep theirs. The detector never fails: when no boundary qualifies
// the stream stays a single section.
func applySections(records []models.ServiceRecord, marks []int, cfg Config) []models.ServiceRecord {
	if len(records) == 0 {
		return records
	}
	tagAditivoBlocks(records, marks)
	tagRestartSections(records, cfg)
	return records
}

// tagAditivoBlocks assigns AD- prefixes from each aditivo heading to the
// next heading or the end of the stream. A lone block renders as AD-;
// multiple blocks are numbered from 1.
func tagAditivoBlocks(records []models.ServiceRecord, marks []int) {
	for k, start := range marks {
		end := len(records)
		if k+1 < len(marks) {
			end = marks[k+1]
		}
		num := 0
		if len(marks) > 1 {
			num = k + 1
		}
		for i := start; i < end && i < len(records); i++ {
			code := records[i].Code
			if code == nil || code.Prefix != models.PrefixNone {
				continue
			}
			code.Prefix = models.PrefixAditivo
			code.PrefixNumber = num
		}
	}
}

// tagRestartSections detects item numbering that drops back to the top:
// a code that orders before its predecessor while its own depth-1 value
// is at or below RestartDepth1Max opens a candidate boundary, confirmed
// by a window of following codes that rises monotonically and shares
// enough paths with the primary section. A worksheet that never leaves
// its first chapter still restarts this way.
func tagRestartSections(records []models.ServiceRecord, cfg Config) {
	var coded []int
	for i, r := range records {
		if r.Code != nil && r.Code.Prefix == models.PrefixNone {
			coded = append(coded, i)
		}
	}
	if len(coded) <= cfg.RestartMinCodes {
		return
	}

	primary := make(map[string]bool)
	var boundaries []int
	inPrimary := true
	var prev *models.ItemCode
	for ci, idx := range coded {
		code := records[idx].Code
		if prev != nil && code.First() <= cfg.RestartDepth1Max &&
			models.CompareCodes(prev, code) > 0 &&
			plausibleRestart(records, coded[ci:], primary, cfg) {
			boundaries = append(boundaries, ci)
			inPrimary = false
		} else if inPrimary {
			primary[code.PathString()] = true
		}
		prev = code
	}

	for b, start := range boundaries {
		end := len(coded)
		if b+1 < len(boundaries) {
			end = boundaries[b+1]
		}
		for _, idx := range coded[start:end] {
			records[idx].Code.Prefix = models.PrefixRestart
			records[idx].Code.PrefixNumber = b + 1
		}
	}
}

// plausibleRestart checks the window opening at a candidate boundary:
// enough codes, non-decreasing order, and enough distinct paths shared
// with the primary section.
func plausibleRestart(records []models.ServiceRecord, rest []int, primary map[string]bool, cfg Config) bool {
	if len(rest) < cfg.RestartMinCodes {
		return false
	}
	window := rest[:cfg.RestartMinCodes]
	seen := make(map[string]bool)
	overlap := 0
	var prev *models.ItemCode
	for _, idx := range window {
		code := records[idx].Code
		if prev != nil && models.CompareCodes(prev, code) > 0 {
			return false
		}
		prev = code
		p := code.PathString()
		if !seen[p] {
			seen[p] = true
			if primary[p] {
				overlap++
			}
		}
	}
	return overlap >= cfg.RestartMinOverlap
}
