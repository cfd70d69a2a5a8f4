package extract

import (
	"context"
	"errors"

	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/vision"
)

// strategyAttempt is one cascade step: an applicability check and the
// extractor itself.
type strategyAttempt struct {
	name models.SourceStrategy
	ok   func(*models.DocumentSource) bool
	run  func(context.Context, *models.DocumentSource, *stream) error
}

// Cascade runs extraction strategies from cheapest to most expensive and
// stops at the first result of acceptable quality. It is stateless and
// safe for concurrent use; per-document state lives in the call.
type Cascade struct {
	cfg    Config
	vision VisionProvider
}

// NewCascade builds a cascade. vision may be nil, which disables the
// vision strategy and the escalation step.
func NewCascade(cfg Config, vision VisionProvider) *Cascade {
	return &Cascade{cfg: cfg, vision: vision}
}

func (c *Cascade) strategies() []strategyAttempt {
	return []strategyAttempt{
		{
			name: models.StrategyNativeText,
			ok:   (*models.DocumentSource).HasText,
			run: func(_ context.Context, src *models.DocumentSource, st *stream) error {
				extractNativeText(src, st)
				return nil
			},
		},
		{
			name: models.StrategyTableGrid,
			ok:   (*models.DocumentSource).HasTables,
			run: func(_ context.Context, src *models.DocumentSource, st *stream) error {
				extractTableGrid(src, st)
				return nil
			},
		},
		{
			name: models.StrategyVisionTable,
			ok: func(src *models.DocumentSource) bool {
				return c.vision != nil && src.HasImages()
			},
			run: func(ctx context.Context, src *models.DocumentSource, st *stream) error {
				return extractVisionTable(ctx, src, c.vision, c.vision.TablePrompt(), models.StrategyVisionTable, c.cfg, st)
			},
		},
		{
			name: models.StrategyGridOCR,
			ok:   (*models.DocumentSource).HasWords,
			run: func(_ context.Context, src *models.DocumentSource, st *stream) error {
				extractGridOCR(src, st)
				return nil
			},
		},
		{
			name: models.StrategyOCRLayout,
			ok:   (*models.DocumentSource).HasWords,
			run: func(_ context.Context, src *models.DocumentSource, st *stream) error {
				extractOCRLayout(src, st)
				return nil
			},
		},
	}
}

// Extract runs the full pipeline on one document: the strategy cascade,
// section tagging and canonicalization. Strategy failures and quality
// rejections are never fatal; they end up in the result diagnostics. An
// error is returned only for an unusable source, a dead context or a
// fatal provider error.
func (c *Cascade) Extract(ctx context.Context, src *models.DocumentSource) (models.ExtractionResult, error) {
	if src == nil || len(src.Pages) == 0 {
		return models.ExtractionResult{}, errors.New("document source has no pages")
	}

	d := &diagnostics{}
	type partialResult struct {
		st    *stream
		name  models.SourceStrategy
		score float64
	}
	var partials []partialResult

	var chosen *stream
	var chosenScore float64
	var chosenStrategy models.SourceStrategy

	for _, attempt := range c.strategies() {
		if err := ctx.Err(); err != nil {
			return models.ExtractionResult{}, err
		}
		if !attempt.ok(src) {
			continue
		}
		st := &stream{d: d}
		if err := attempt.run(ctx, src, st); err != nil {
			if ctx.Err() != nil {
				return models.ExtractionResult{}, ctx.Err()
			}
			if errors.Is(err, vision.ErrFatalAPI) {
				return models.ExtractionResult{}, err
			}
			d.addf("%s: failed: %v", attempt.name, err)
			continue
		}
		q := scoreQuality(st.records, src.PageCount(), c.cfg)
		d.addf("%s: %d rows, quality %.2f (unit+qty %.2f, codes %.2f, rows %.2f)",
			attempt.name, len(st.records), q.Score, q.UnitQuantity, q.ValidCode, q.RowPlausibility)
		switch {
		case q.Score >= c.cfg.AcceptThreshold:
			chosen, chosenScore, chosenStrategy = st, q.Score, attempt.name
		case q.Score >= c.cfg.MergeThreshold:
			partials = append(partials, partialResult{st: st, name: attempt.name, score: q.Score})
		default:
			d.addf("%s: discarded below merge threshold", attempt.name)
		}
		if chosen != nil {
			break
		}
	}

	if chosen == nil && len(partials) > 0 {
		merged := &stream{d: d}
		seen := make(map[string]bool)
		bestIdx := 0
		for i, p := range partials {
			if p.score > partials[bestIdx].score {
				bestIdx = i
			}
			appendStream(merged, p.st, seen)
		}
		q := scoreQuality(merged.records, src.PageCount(), c.cfg)
		d.addf("merged %d partial results: %d rows, quality %.2f", len(partials), len(merged.records), q.Score)
		chosen, chosenScore, chosenStrategy = merged, q.Score, partials[bestIdx].name
	}

	if chosen == nil && c.vision != nil && src.HasImages() {
		st := &stream{d: d}
		err := extractVisionTable(ctx, src, c.vision, c.vision.EscalationPrompt(), models.StrategyVisionTable, c.cfg, st)
		switch {
		case err != nil && ctx.Err() != nil:
			return models.ExtractionResult{}, ctx.Err()
		case errors.Is(err, vision.ErrFatalAPI):
			return models.ExtractionResult{}, err
		case err != nil:
			d.addf("vision escalation failed: %v", err)
		case len(st.records) == 0:
			d.addf("vision escalation returned no rows")
		default:
			q := scoreQuality(st.records, src.PageCount(), c.cfg)
			d.addf("vision escalation: %d rows, quality %.2f", len(st.records), q.Score)
			chosen, chosenScore, chosenStrategy = st, q.Score, models.StrategyVisionTable
		}
	}

	if chosen == nil {
		d.addf("no strategy produced usable rows")
		return models.ExtractionResult{Diagnostics: d.notes}, nil
	}

	records := applySections(chosen.records, chosen.marks, c.cfg)
	records = canonicalize(records, c.cfg, d)
	if len(records) == 0 {
		chosenScore = 0
	}
	return models.ExtractionResult{
		Records:     records,
		Quality:     chosenScore,
		Strategy:    chosenStrategy,
		Diagnostics: d.notes,
	}, nil
}

// appendStream copies src into dst, skipping records dst already holds
// and carrying aditivo marks at their relative positions.
func appendStream(dst, src *stream, seen map[string]bool) {
	marks := src.marks
	for i, rec := range src.records {
		for len(marks) > 0 && marks[0] == i {
			dst.noteAditivo()
			marks = marks[1:]
		}
		k := recordKey(rec)
		if seen[k] {
			continue
		}
		seen[k] = true
		dst.add(rec)
	}
	for len(marks) > 0 && marks[0] == len(src.records) {
		dst.noteAditivo()
		marks = marks[1:]
	}
}
