package rendering

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// BackendSoffice rasterizes office documents through a headless
// LibreOffice-compatible converter plus pdftoppm.
const BackendSoffice = "soffice"

var commandContext = exec.CommandContext

var lookPath = exec.LookPath

// SofficeBackend shells out to a document engine for office formats.
type SofficeBackend struct {
	binary  string
	timeout int
}

// NewSofficeBackend constructs the soffice backend with the given converter
// binary name.
func NewSofficeBackend(binary string, timeoutSeconds int) *SofficeBackend {
	if binary == "" {
		binary = "soffice"
	}
	return &SofficeBackend{binary: binary, timeout: timeoutSeconds}
}

func (b *SofficeBackend) Name() string { return BackendSoffice }

// Available reports whether both required binaries are on PATH.
func (b *SofficeBackend) Available(context.Context) bool {
	if _, err := lookPath(b.binary); err != nil {
		return false
	}
	if _, err := lookPath("pdftoppm"); err != nil {
		return false
	}
	return true
}

func (b *SofficeBackend) NewStrategy() Strategy {
	return &sofficeStrategy{binary: b.binary}
}

// sofficeStrategy converts the document to PDF, then to per-slide PNGs in a
// temp directory that Cleanup removes.
type sofficeStrategy struct {
	binary   string
	workDir  string
	pages    []string
	prepared bool
}

func (s *sofficeStrategy) Name() string { return BackendSoffice }

func (s *sofficeStrategy) PrepareForRendering(ctx context.Context, document []byte) error {
	if s.prepared {
		return &PreparationError{Backend: BackendSoffice, Err: fmt.Errorf("already prepared")}
	}

	workDir, err := os.MkdirTemp("", "slidecast-soffice-*")
	if err != nil {
		return &PreparationError{Backend: BackendSoffice, Err: fmt.Errorf("create work dir: %w", err)}
	}
	// From here Cleanup owns workDir, even when preparation fails midway.
	s.workDir = workDir

	docPath := filepath.Join(workDir, "deck.pptx")
	if err := os.WriteFile(docPath, document, 0o644); err != nil {
		return &PreparationError{Backend: BackendSoffice, Err: fmt.Errorf("write document: %w", err)}
	}

	convert := commandContext(ctx, s.binary, "--headless", "--convert-to", "pdf", "--outdir", workDir, docPath)
	if output, err := convert.CombinedOutput(); err != nil {
		return &PreparationError{Backend: BackendSoffice, Err: fmt.Errorf("convert to pdf: %w: %s", err, strings.TrimSpace(string(output)))}
	}

	pdfPath := filepath.Join(workDir, "deck.pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return &PreparationError{Backend: BackendSoffice, Err: fmt.Errorf("converter produced no pdf: %w", err)}
	}

	rasterize := commandContext(ctx, "pdftoppm", "-png", pdfPath, filepath.Join(workDir, "slide"))
	if output, err := rasterize.CombinedOutput(); err != nil {
		return &PreparationError{Backend: BackendSoffice, Err: fmt.Errorf("rasterize pdf: %w: %s", err, strings.TrimSpace(string(output)))}
	}

	pages, err := filepath.Glob(filepath.Join(workDir, "slide-*.png"))
	if err != nil || len(pages) == 0 {
		return &PreparationError{Backend: BackendSoffice, Err: fmt.Errorf("rasterizer produced no pages")}
	}
	sort.Strings(pages)

	s.pages = pages
	s.prepared = true
	return nil
}

func (s *sofficeStrategy) RenderSlide(ctx context.Context, slideNumber, width, height int) (image.Image, error) {
	if !s.prepared {
		return nil, ErrNotPrepared
	}
	if slideNumber < 1 || slideNumber > len(s.pages) {
		return nil, &RenderError{Backend: BackendSoffice, Slide: slideNumber, Err: fmt.Errorf("slide out of range (document has %d)", len(s.pages))}
	}
	if width <= 0 || height <= 0 {
		return nil, &RenderError{Backend: BackendSoffice, Slide: slideNumber, Err: fmt.Errorf("invalid dimensions %dx%d", width, height)}
	}

	file, err := os.Open(s.pages[slideNumber-1])
	if err != nil {
		return nil, &RenderError{Backend: BackendSoffice, Slide: slideNumber, Err: err}
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, &RenderError{Backend: BackendSoffice, Slide: slideNumber, Err: fmt.Errorf("decode page: %w", err)}
	}

	if img.Bounds().Dx() == width && img.Bounds().Dy() == height {
		return img, nil
	}
	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return scaled, nil
}

func (s *sofficeStrategy) SlideCount() int {
	return len(s.pages)
}

// Cleanup removes the temp work directory. Safe to call repeatedly and
// after partial preparation failure.
func (s *sofficeStrategy) Cleanup(context.Context) error {
	if s.workDir != "" {
		if err := os.RemoveAll(s.workDir); err != nil {
			return fmt.Errorf("remove soffice work dir: %w", err)
		}
		s.workDir = ""
	}
	s.pages = nil
	s.prepared = false
	return nil
}
