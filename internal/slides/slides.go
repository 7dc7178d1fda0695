package slides

import (
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog"
)

// Extractor returns the on-slide text of a deck, one string per slide, in
// slide order. Slides without text are skipped. Any failure yields an empty
// list, which callers treat as nothing to narrate.
type Extractor interface {
	Extract(path string) []string
}

// ByExtension dispatches to the PDF or PPTX extractor by file extension.
type ByExtension struct {
	PDF    Extractor
	PPTX   Extractor
	Logger zerolog.Logger
}

func New(logger zerolog.Logger) *ByExtension {
	return &ByExtension{
		PDF:    &PDFExtractor{Logger: logger},
		PPTX:   &PPTXExtractor{Logger: logger},
		Logger: logger,
	}
}

func (e *ByExtension) Extract(path string) []string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return e.PDF.Extract(path)
	case ".pptx":
		return e.PPTX.Extract(path)
	}
	e.Logger.Warn().Str("path", path).Msg("unsupported deck format")
	return nil
}

// PDFExtractor reads page text with MuPDF.
type PDFExtractor struct {
	Logger zerolog.Logger
}

func (e *PDFExtractor) Extract(path string) []string {
	doc, err := fitz.New(path)
	if err != nil {
		e.Logger.Warn().Err(err).Str("path", path).Msg("cannot open pdf")
		return nil
	}
	defer doc.Close()

	var texts []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			e.Logger.Warn().Err(err).Int("page", i).Msg("cannot read page text")
			return nil
		}
		if text = Normalize(text); text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}

// Normalize trims every line and drops blank ones.
func Normalize(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
