package narration

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"slidecast/internal/services"
	"slidecast/internal/store"
)

// Document is the narration hand-off format: one entry per slide.
type Document struct {
	Slides []SlideEntry `toml:"slides"`
}

// SlideEntry carries the narration artifacts for one slide. Text is
// required; enhanced text and the audio locator are optional and may be
// supplied by a later import.
type SlideEntry struct {
	Slide        int    `toml:"slide"`
	Text         string `toml:"text"`
	EnhancedText string `toml:"enhanced_text"`
	AudioURL     string `toml:"audio_url"`
}

// Load parses and validates a narration document from path.
func Load(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open narration file: %w", err)
	}
	defer file.Close()

	var doc Document
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse narration file: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) validate() error {
	if len(d.Slides) == 0 {
		return services.Wrap(services.ErrValidation, "narration", "validate",
			"Narration document contains no slides", nil)
	}
	seen := make(map[int]bool, len(d.Slides))
	for _, entry := range d.Slides {
		if entry.Slide < 1 {
			return services.Wrap(services.ErrValidation, "narration", "validate",
				fmt.Sprintf("Slide number %d is invalid; numbering starts at 1", entry.Slide), nil)
		}
		if seen[entry.Slide] {
			return services.Wrap(services.ErrValidation, "narration", "validate",
				fmt.Sprintf("Slide %d appears more than once", entry.Slide), nil)
		}
		seen[entry.Slide] = true
		if strings.TrimSpace(entry.Text) == "" {
			return services.Wrap(services.ErrValidation, "narration", "validate",
				fmt.Sprintf("Slide %d has no narration text", entry.Slide), nil)
		}
	}
	return nil
}

// Import records the document's entries as the latest narrative per slide.
// The presentation must exist, and once rendered the document may not name
// slides beyond its slide count. Returns the number of slides imported.
func Import(ctx context.Context, st *store.Store, presentationID int64, doc *Document) (int, error) {
	pres, err := st.GetPresentation(ctx, presentationID)
	if err != nil {
		return 0, fmt.Errorf("load presentation: %w", err)
	}
	if pres == nil {
		return 0, services.Wrap(services.ErrNotFound, "narration", "import",
			fmt.Sprintf("presentation %d not found", presentationID), nil)
	}

	entries := make([]SlideEntry, len(doc.Slides))
	copy(entries, doc.Slides)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Slide < entries[j].Slide })

	if pres.SlideCount > 0 {
		last := entries[len(entries)-1]
		if last.Slide > pres.SlideCount {
			return 0, services.Wrap(services.ErrValidation, "narration", "import",
				fmt.Sprintf("Slide %d exceeds the presentation's %d rendered slides", last.Slide, pres.SlideCount), nil)
		}
	}

	for _, entry := range entries {
		narrative := &store.SlideNarrative{
			PresentationID: pres.ID,
			SlideNumber:    entry.Slide,
			NarrativeText:  strings.TrimSpace(entry.Text),
			EnhancedText:   strings.TrimSpace(entry.EnhancedText),
			AudioURL:       strings.TrimSpace(entry.AudioURL),
		}
		if _, err := st.SaveSlideNarrative(ctx, narrative); err != nil {
			return 0, fmt.Errorf("save narrative for slide %d: %w", entry.Slide, err)
		}
	}
	return len(entries), nil
}
