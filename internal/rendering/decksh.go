package rendering

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"image"
	"strings"

	"github.com/ajstarks/deck"
	"github.com/ajstarks/decksh"
	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

// BackendDecksh renders decksh markup or deck XML in process. It has no
// external dependencies, which makes it the natural always-present default.
const BackendDecksh = "decksh"

// DeckshBackend creates in-process deck rendering strategies.
type DeckshBackend struct{}

// NewDeckshBackend constructs the decksh backend.
func NewDeckshBackend() *DeckshBackend {
	return &DeckshBackend{}
}

func (b *DeckshBackend) Name() string { return BackendDecksh }

// Available always reports true: rendering happens in process.
func (b *DeckshBackend) Available(context.Context) bool { return true }

func (b *DeckshBackend) NewStrategy() Strategy {
	return &deckshStrategy{}
}

// deckshStrategy holds a parsed deck between prepare and cleanup.
type deckshStrategy struct {
	deck     *deck.Deck
	prepared bool
}

func (s *deckshStrategy) Name() string { return BackendDecksh }

// PrepareForRendering compiles decksh markup to deck XML when needed and
// parses the deck into memory.
func (s *deckshStrategy) PrepareForRendering(ctx context.Context, document []byte) error {
	if s.prepared {
		return &PreparationError{Backend: BackendDecksh, Err: fmt.Errorf("already prepared")}
	}

	xmlData := document
	if !looksLikeDeckXML(document) {
		var compiled bytes.Buffer
		if err := decksh.Process(&compiled, bytes.NewReader(document)); err != nil {
			return &PreparationError{Backend: BackendDecksh, Err: fmt.Errorf("compile decksh markup: %w", err)}
		}
		xmlData = compiled.Bytes()
	}

	var parsed deck.Deck
	if err := xml.Unmarshal(xmlData, &parsed); err != nil {
		return &PreparationError{Backend: BackendDecksh, Err: fmt.Errorf("parse deck xml: %w", err)}
	}
	if len(parsed.Slide) == 0 {
		return &PreparationError{Backend: BackendDecksh, Err: fmt.Errorf("deck has no slides")}
	}
	if parsed.Canvas.Width == 0 {
		parsed.Canvas.Width = 1024
	}
	if parsed.Canvas.Height == 0 {
		parsed.Canvas.Height = 768
	}

	s.deck = &parsed
	s.prepared = true
	return nil
}

// RenderSlide rasterizes one slide at the deck canvas size, then scales the
// result proportionally to the requested pixel dimensions.
func (s *deckshStrategy) RenderSlide(ctx context.Context, slideNumber, width, height int) (image.Image, error) {
	if !s.prepared || s.deck == nil {
		return nil, ErrNotPrepared
	}
	if slideNumber < 1 || slideNumber > len(s.deck.Slide) {
		return nil, &RenderError{Backend: BackendDecksh, Slide: slideNumber, Err: fmt.Errorf("slide out of range (deck has %d)", len(s.deck.Slide))}
	}
	if width <= 0 || height <= 0 {
		return nil, &RenderError{Backend: BackendDecksh, Slide: slideNumber, Err: fmt.Errorf("invalid dimensions %dx%d", width, height)}
	}

	canvas := rasterizeSlide(s.deck, slideNumber-1)
	if canvas.Bounds().Dx() == width && canvas.Bounds().Dy() == height {
		return canvas, nil
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), canvas, canvas.Bounds(), xdraw.Over, nil)
	return scaled, nil
}

func (s *deckshStrategy) SlideCount() int {
	if s.deck == nil {
		return 0
	}
	return len(s.deck.Slide)
}

// Cleanup drops the in-memory deck. Safe to call repeatedly.
func (s *deckshStrategy) Cleanup(context.Context) error {
	s.deck = nil
	s.prepared = false
	return nil
}

func looksLikeDeckXML(document []byte) bool {
	trimmed := strings.TrimSpace(string(document))
	return strings.HasPrefix(trimmed, "<?xml") || strings.HasPrefix(trimmed, "<deck")
}

// rasterizeSlide draws the background, text, and list layers of one slide.
// Deck coordinates are percentages with the origin at the bottom left.
func rasterizeSlide(d *deck.Deck, index int) image.Image {
	cw := d.Canvas.Width
	ch := d.Canvas.Height
	dc := gg.NewContext(cw, ch)
	slide := d.Slide[index]

	bg := slide.Bg
	if bg == "" {
		bg = "white"
	}
	setColor(dc, bg)
	dc.Clear()

	fg := slide.Fg
	if fg == "" {
		fg = "black"
	}

	for _, rect := range slide.Rect {
		x, y := deckCoords(rect.Xp, rect.Yp, cw, ch)
		w := pct(rect.Wp, float64(cw))
		h := pct(rect.Hp, float64(ch))
		setColorOr(dc, rect.Color, fg)
		dc.DrawRectangle(x-w/2, y-h/2, w, h)
		dc.Fill()
	}

	for _, text := range slide.Text {
		x, y := deckCoords(text.Xp, text.Yp, cw, ch)
		setColorOr(dc, text.Color, fg)
		anchorX := 0.0
		switch text.Align {
		case "center", "c", "middle", "mid":
			anchorX = 0.5
		case "right", "r", "end", "e":
			anchorX = 1.0
		}
		dc.DrawStringAnchored(text.Tdata, x, y, anchorX, 0.5)
	}

	for _, list := range slide.List {
		x, y := deckCoords(list.Xp, list.Yp, cw, ch)
		lineHeight := pct(list.Sp, float64(ch)) * 1.8
		if lineHeight <= 0 {
			lineHeight = float64(ch) * 0.04
		}
		setColorOr(dc, list.Color, fg)
		for i, item := range list.Li {
			label := item.ListText
			if list.Type == "number" {
				label = fmt.Sprintf("%d. %s", i+1, label)
			} else if list.Type == "bullet" {
				label = "• " + label
			}
			if item.Color != "" {
				setColor(dc, item.Color)
			}
			dc.DrawStringAnchored(label, x, y+float64(i)*lineHeight, 0, 0.5)
			if item.Color != "" {
				setColorOr(dc, list.Color, fg)
			}
		}
	}

	return dc.Image()
}

func pct(p, m float64) float64 {
	return (p / 100.0) * m
}

// deckCoords converts percentage coordinates (origin bottom left) to pixel
// coordinates (origin top left).
func deckCoords(xp, yp float64, cw, ch int) (float64, float64) {
	x := pct(xp, float64(cw))
	y := float64(ch) - pct(yp, float64(ch))
	return x, y
}

var namedColors = map[string][3]float64{
	"white":     {1, 1, 1},
	"black":     {0, 0, 0},
	"gray":      {0.5, 0.5, 0.5},
	"grey":      {0.5, 0.5, 0.5},
	"silver":    {0.75, 0.75, 0.75},
	"red":       {0.86, 0.08, 0.24},
	"green":     {0, 0.5, 0},
	"blue":      {0.12, 0.29, 0.85},
	"yellow":    {1, 0.84, 0},
	"orange":    {1, 0.55, 0},
	"purple":    {0.5, 0, 0.5},
	"maroon":    {0.5, 0, 0},
	"navy":      {0, 0, 0.5},
	"teal":      {0, 0.5, 0.5},
	"olive":     {0.5, 0.5, 0},
	"steel":     {0.27, 0.51, 0.71},
	"lightgray": {0.83, 0.83, 0.83},
}

func setColor(dc *gg.Context, name string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if strings.HasPrefix(name, "#") {
		dc.SetHexColor(name)
		return
	}
	if rgb, ok := namedColors[name]; ok {
		dc.SetRGB(rgb[0], rgb[1], rgb[2])
		return
	}
	dc.SetRGB(0, 0, 0)
}

func setColorOr(dc *gg.Context, name, fallback string) {
	if strings.TrimSpace(name) == "" {
		name = fallback
	}
	setColor(dc, name)
}
