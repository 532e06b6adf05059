package service

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PageBreakMarker separates per-page segments in assembled document text.
// Splitting assembled text on it yields one segment per page, in page order;
// pages that produced no text still hold their (empty) slot.
const PageBreakMarker = "--- PAGE BREAK ---"

const pageBreakSeparator = "\n" + PageBreakMarker + "\n"

type Rasterizer interface {
	Rasterize(ctx context.Context, filePath string) ([]PageImage, func(), error)
}

type ImageTextExtractor interface {
	ExtractImage(ctx context.Context, imagePath string) (string, error)
}

// TextService assembles the full machine-readable text of one uploaded file.
// Single images go straight through OCR; PDFs are read from their embedded
// text layer when one exists, otherwise rasterized page by page and OCR'd.
type TextService struct {
	raster Rasterizer
	ocr    ImageTextExtractor
	logger *zap.Logger
}

func NewTextService(raster Rasterizer, ocr ImageTextExtractor, logger *zap.Logger) *TextService {
	return &TextService{
		raster: raster,
		ocr:    ocr,
		logger: logger,
	}
}

// ExtractText returns the assembled text for filePath. A failed page inside a
// multi-page document degrades to an empty segment so the other pages
// survive; only rasterization failure or a failed single-image OCR fails the
// whole document. Scratch resources are cleaned up on every path.
func (s *TextService) ExtractText(ctx context.Context, filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	if ext == ".pdf" {
		if text, ok := s.extractPDFTextLayer(filePath); ok {
			return text, nil
		}
		return s.extractScannedPDF(ctx, filePath)
	}

	return s.ocr.ExtractImage(ctx, filePath)
}

// extractPDFTextLayer reads per-page text straight out of the PDF. Returns
// ok=false for scanned PDFs (every page's text layer empty), which then take
// the rasterize+OCR path.
func (s *TextService) extractPDFTextLayer(pdfPath string) (string, bool) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		s.logger.Warn("Failed to open PDF for text layer", zap.String("file", pdfPath), zap.Error(err))
		return "", false
	}
	defer doc.Close()

	segments := make([]string, 0, doc.NumPage())
	hasText := false
	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			s.logger.Warn("Failed to read PDF page text",
				zap.Int("page", i+1),
				zap.String("file", pdfPath),
				zap.Error(err),
			)
			pageText = ""
		}
		if strings.TrimSpace(pageText) != "" {
			hasText = true
		}
		segments = append(segments, pageText)
	}

	if !hasText {
		return "", false
	}

	s.logger.Info("PDF text layer extracted",
		zap.String("file", pdfPath),
		zap.Int("pages", len(segments)),
	)

	return strings.Join(segments, pageBreakSeparator), true
}

// extractScannedPDF rasterizes the PDF and OCRs every page. Pages run
// concurrently; each result lands in its own slot so the assembled text keeps
// rasterization order.
func (s *TextService) extractScannedPDF(ctx context.Context, pdfPath string) (string, error) {
	pages, cleanup, err := s.raster.Rasterize(ctx, pdfPath)
	if err != nil {
		return "", err
	}
	defer cleanup()

	segments := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)

	for i, page := range pages {
		i, page := i, page
		g.Go(func() error {
			text, err := s.ocr.ExtractImage(gctx, page.Path)
			if err != nil {
				// Keep the empty slot so other pages survive a bad one.
				s.logger.Warn("Page OCR failed",
					zap.Int("page", page.Index),
					zap.String("file", pdfPath),
					zap.Error(err),
				)
				text = ""
			}
			segments[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	s.logger.Info("Scanned PDF extracted",
		zap.String("file", pdfPath),
		zap.Int("pages", len(pages)),
	)

	return strings.Join(segments, pageBreakSeparator), nil
}
