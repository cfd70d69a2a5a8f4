package models

// DocumentSource is the plain-data input contract for one document.
// Collaborators that own PDF parsing, OCR and rasterization produce it;
// the pipeline never touches PDF-library objects.
type DocumentSource struct {
	Name  string `json:"name,omitempty"`
	Pages []Page `json:"pages"`
}

// Page carries the per-page modalities. Any of them may be absent; an
// absent modality makes the corresponding strategy unavailable for the
// document.
type Page struct {
	Number int         `json:"number"`
	Text   string      `json:"text,omitempty"`
	Words  []Word      `json:"words,omitempty"`
	Tables []TableGrid `json:"tables,omitempty"`
	// Image is the rendered page (PNG/JPEG bytes, base64 in JSON),
	// used only by the vision strategy.
	Image []byte `json:"image,omitempty"`
}

// Word is one OCR token with its bounding box in page coordinates.
type Word struct {
	Text string  `json:"text"`
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
}

// TableGrid is one detected table: rows of cell strings.
type TableGrid struct {
	Rows [][]string `json:"rows"`
}

// HasText reports whether any page carries native text.
func (s *DocumentSource) HasText() bool {
	for _, p := range s.Pages {
		if p.Text != "" {
			return true
		}
	}
	return false
}

// HasWords reports whether any page carries OCR words.
func (s *DocumentSource) HasWords() bool {
	for _, p := range s.Pages {
		if len(p.Words) > 0 {
			return true
		}
	}
	return false
}

// HasTables reports whether any page carries detected table grids.
func (s *DocumentSource) HasTables() bool {
	for _, p := range s.Pages {
		if len(p.Tables) > 0 {
			return true
		}
	}
	return false
}

// HasImages reports whether any page carries a rendered image.
func (s *DocumentSource) HasImages() bool {
	for _, p := range s.Pages {
		if len(p.Image) > 0 {
			return true
		}
	}
	return false
}

// PageCount returns the number of pages.
func (s *DocumentSource) PageCount() int {
	return len(s.Pages)
}
