package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRasterizer struct {
	pages   []PageImage
	err     error
	mu      sync.Mutex
	cleaned bool
}

func (r *stubRasterizer) Rasterize(ctx context.Context, filePath string) ([]PageImage, func(), error) {
	cleanup := func() {
		r.mu.Lock()
		r.cleaned = true
		r.mu.Unlock()
	}
	if r.err != nil {
		return nil, func() {}, r.err
	}
	return r.pages, cleanup, nil
}

func (r *stubRasterizer) cleanedUp() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleaned
}

type stubOCR struct {
	texts map[string]string
	errs  map[string]error
}

func (o *stubOCR) ExtractImage(ctx context.Context, imagePath string) (string, error) {
	if err, ok := o.errs[imagePath]; ok {
		return "", err
	}
	return o.texts[imagePath], nil
}

func TestExtractTextSingleImagePassesThroughOCR(t *testing.T) {
	ocr := &stubOCR{texts: map[string]string{"scan.jpg": "W2 form text"}}
	svc := NewTextService(&stubRasterizer{}, ocr, zap.NewNop())

	text, err := svc.ExtractText(context.Background(), "scan.jpg")

	require.NoError(t, err)
	assert.Equal(t, "W2 form text", text)
	assert.NotContains(t, text, PageBreakMarker)
}

func TestExtractTextScannedPDFJoinsPagesInOrder(t *testing.T) {
	raster := &stubRasterizer{pages: []PageImage{
		{Index: 1, Path: "p1.png"},
		{Index: 2, Path: "p2.png"},
		{Index: 3, Path: "p3.png"},
	}}
	ocr := &stubOCR{texts: map[string]string{
		"p1.png": "first page",
		"p2.png": "second page",
		"p3.png": "third page",
	}}
	svc := NewTextService(raster, ocr, zap.NewNop())

	// The path does not exist, so there is no embedded text layer and the
	// rasterize+OCR path runs.
	text, err := svc.ExtractText(context.Background(), filepath.Join(t.TempDir(), "scan.pdf"))

	require.NoError(t, err)
	assert.Equal(t, "first page\n"+PageBreakMarker+"\nsecond page\n"+PageBreakMarker+"\nthird page", text)
	assert.Equal(t, 2, strings.Count(text, PageBreakMarker))
	assert.True(t, raster.cleanedUp())
}

func TestExtractTextFailedPageDegradesToEmptySegment(t *testing.T) {
	raster := &stubRasterizer{pages: []PageImage{
		{Index: 1, Path: "p1.png"},
		{Index: 2, Path: "p2.png"},
		{Index: 3, Path: "p3.png"},
	}}
	ocr := &stubOCR{
		texts: map[string]string{"p1.png": "first", "p3.png": "third"},
		errs:  map[string]error{"p2.png": &OCRRunError{Image: "p2.png", Err: errors.New("boom")}},
	}
	svc := NewTextService(raster, ocr, zap.NewNop())

	text, err := svc.ExtractText(context.Background(), filepath.Join(t.TempDir(), "scan.pdf"))

	require.NoError(t, err)
	assert.Equal(t, "first\n"+PageBreakMarker+"\n\n"+PageBreakMarker+"\nthird", text)
	assert.True(t, raster.cleanedUp())
}

func TestExtractTextRasterizeFailureFailsDocument(t *testing.T) {
	toolErr := &ExternalToolError{Tool: "pdftoppm", Stderr: "broken input"}
	raster := &stubRasterizer{err: toolErr}
	svc := NewTextService(raster, &stubOCR{}, zap.NewNop())

	_, err := svc.ExtractText(context.Background(), filepath.Join(t.TempDir(), "scan.pdf"))

	var extErr *ExternalToolError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "pdftoppm", extErr.Tool)
}
