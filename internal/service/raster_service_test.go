package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"taxdesk/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRaster(t *testing.T, pdftoppm string) (*RasterService, string) {
	t.Helper()
	workDir := t.TempDir()
	cfg := &config.RasterConfig{PdftoppmPath: pdftoppm, Timeout: 5 * time.Second}
	return NewRasterService(cfg, workDir, zap.NewNop()), workDir
}

func TestRasterizeNonPDFPassesThrough(t *testing.T) {
	svc, workDir := newTestRaster(t, "pdftoppm")

	pages, cleanup, err := svc.Rasterize(context.Background(), "/uploads/scan.jpg")

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 0, pages[0].Index)
	assert.Equal(t, "/uploads/scan.jpg", pages[0].Path)

	// Cleanup is a no-op: the caller owns the original file.
	cleanup()
	_, err = os.Stat(workDir)
	assert.NoError(t, err)
}

func TestRasterizeMissingBinaryReturnsExternalToolError(t *testing.T) {
	svc, workDir := newTestRaster(t, filepath.Join(t.TempDir(), "no-such-pdftoppm"))

	_, _, err := svc.Rasterize(context.Background(), "doc.pdf")

	var toolErr *ExternalToolError
	require.ErrorAs(t, err, &toolErr)

	// The scratch dir must not survive a failed run.
	entries, readErr := os.ReadDir(workDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestCollectPagesOrdersNumerically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-10.png", "page-2.png", "page-1.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0755))

	pages, err := collectPages(dir)

	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{pages[0].Index, pages[1].Index, pages[2].Index})
	assert.Equal(t, filepath.Join(dir, "page-10.png"), pages[2].Path)
}

func TestPageIndex(t *testing.T) {
	assert.Equal(t, 2, pageIndex("page-2.png"))
	assert.Equal(t, 10, pageIndex("page-10.png"))
	assert.Equal(t, 7, pageIndex("page07.png"))
	assert.Equal(t, 0, pageIndex("page.png"))
}
