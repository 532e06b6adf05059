package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"taxdesk/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PageImage is one rasterized page. Index is the explicit page ordinal parsed
// from the renderer's output name, not a position in a directory listing.
type PageImage struct {
	Index int
	Path  string
}

// RasterService converts multi-page PDFs into per-page PNG images by running
// pdftoppm in a scratch directory. Non-PDF inputs pass through untouched.
type RasterService struct {
	cfg     *config.RasterConfig
	workDir string
	logger  *zap.Logger
}

func NewRasterService(cfg *config.RasterConfig, workDir string, logger *zap.Logger) *RasterService {
	return &RasterService{
		cfg:     cfg,
		workDir: workDir,
		logger:  logger,
	}
}

// Rasterize returns the page images for filePath in page order together with
// a cleanup func that removes the scratch directory. The cleanup func is
// always safe to call; for pass-through inputs it is a no-op since the caller
// owns the original file. On error the scratch directory is already gone.
func (s *RasterService) Rasterize(ctx context.Context, filePath string) ([]PageImage, func(), error) {
	noop := func() {}

	ext := strings.ToLower(filepath.Ext(filePath))
	if ext != ".pdf" {
		return []PageImage{{Index: 0, Path: filePath}}, noop, nil
	}

	// Fresh scratch dir per call; concurrent uploads must never share one.
	scratch := filepath.Join(s.workDir, "temp_"+uuid.New().String())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, noop, fmt.Errorf("failed to create scratch dir: %w", err)
	}

	cleanup := func() {
		if err := os.RemoveAll(scratch); err != nil {
			s.logger.Warn("Failed to remove scratch dir", zap.String("dir", scratch), zap.Error(err))
		}
	}

	runCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, s.cfg.PdftoppmPath, "-png", "-forcenum", filePath, filepath.Join(scratch, "page"))
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cleanup()
		return nil, noop, &ExternalToolError{
			Tool:   s.cfg.PdftoppmPath,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}

	pages, err := collectPages(scratch)
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	if len(pages) == 0 {
		cleanup()
		return nil, noop, &ExternalToolError{
			Tool:   s.cfg.PdftoppmPath,
			Stderr: "no page images produced",
		}
	}

	s.logger.Debug("Rasterized PDF",
		zap.String("file", filePath),
		zap.Int("pages", len(pages)),
	)

	return pages, cleanup, nil
}

// collectPages lists the scratch dir and orders pages by the numeric index in
// their filenames. Sorting parsed indices instead of raw names keeps page-10
// after page-2 even when the renderer does not zero-pad.
func collectPages(dir string) ([]PageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scratch dir: %w", err)
	}

	var pages []PageImage
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".png") {
			continue
		}
		pages = append(pages, PageImage{
			Index: pageIndex(name),
			Path:  filepath.Join(dir, name),
		})
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	return pages, nil
}

// pageIndex parses the trailing digit run of a page filename ("page-12.png"
// -> 12). A name without digits maps to 0.
func pageIndex(name string) int {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	end := len(base)
	start := end
	for start > 0 && base[start-1] >= '0' && base[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0
	}
	idx, err := strconv.Atoi(base[start:end])
	if err != nil {
		return 0
	}
	return idx
}
