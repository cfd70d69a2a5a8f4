package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/vision"
)

// VisionProvider extracts worksheet rows from page images. Implemented
// by the vision package; the pipeline only depends on this interface so
// tests can stub it.
type VisionProvider interface {
	ExtractTable(ctx context.Context, images [][]byte, prompt string) ([]models.VisionRow, error)
	TablePrompt() string
	EscalationPrompt() string
}

// extractVisionTable sends page images to the vision provider in batches
// and normalizes the returned rows. A failed batch is diagnosed and
// skipped; the strategy errors when every batch fails or a batch fails
// fatally (billing, auth), in which case the remaining batches are not
// attempted.
func extractVisionTable(ctx context.Context, src *models.DocumentSource, provider VisionProvider, prompt string, strategy models.SourceStrategy, cfg Config, st *stream) error {
	type imagePage struct {
		page  int
		image []byte
	}
	var pages []imagePage
	for _, p := range src.Pages {
		if len(p.Image) > 0 {
			pages = append(pages, imagePage{page: p.Number, image: p.Image})
		}
	}
	if len(pages) == 0 {
		return fmt.Errorf("no page images available")
	}

	batchSize := cfg.VisionBatchPages
	if batchSize <= 0 {
		batchSize = 1
	}

	batches, failures := 0, 0
	for start := 0; start < len(pages); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(pages))
		batch := pages[start:end]
		images := make([][]byte, 0, len(batch))
		for _, p := range batch {
			images = append(images, p.image)
		}
		batches++

		callCtx, cancel := context.WithTimeout(ctx, cfg.VisionTimeout)
		rows, err := provider.ExtractTable(callCtx, images, prompt)
		cancel()
		if err != nil {
			if errors.Is(err, vision.ErrFatalAPI) {
				return err
			}
			failures++
			st.d.addf("%s: pages %d-%d: provider call failed: %v", strategy, batch[0].page, batch[len(batch)-1].page, err)
			continue
		}

		origin := models.TableOrigin{Page: batch[0].page, Planilha: start / batchSize}
		for _, row := range rows {
			if row.Item == "" && row.Quantidade == "" && isAditivoMarker(row.Descricao) {
				st.noteAditivo()
				continue
			}
			rec, ok := buildRecord(rawRow{code: row.Item, desc: row.Descricao, unit: row.Unidade, qty: row.Quantidade}, strategy, origin, st.d)
			if !ok {
				continue
			}
			st.add(rec)
		}
	}
	if failures == batches {
		return fmt.Errorf("all %d vision batches failed", batches)
	}
	return nil
}
