package service

import (
	"context"

	"taxdesk/pkg/config"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// OCRService recognizes text in a single raster image with Tesseract. Each
// call gets its own engine client, so no recognition state leaks between
// images; a semaphore bounds how many engines run at once.
type OCRService struct {
	cfg    *config.OCRConfig
	sem    chan struct{}
	logger *zap.Logger
}

func NewOCRService(cfg *config.OCRConfig, logger *zap.Logger) *OCRService {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &OCRService{
		cfg:    cfg,
		sem:    make(chan struct{}, workers),
		logger: logger,
	}
}

// ExtractImage runs OCR on one image. A per-image timeout converts a hung
// recognition into an OCRRunError so one bad page cannot stall the request
// forever. The Tesseract call itself cannot be interrupted, so an abandoned
// recognition finishes in the background after a timeout.
func (s *OCRService) ExtractImage(ctx context.Context, imagePath string) (string, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return "", &OCRRunError{Image: imagePath, Err: ctx.Err()}
	}

	runCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		defer func() { <-s.sem }()
		text, err := s.recognize(imagePath)
		done <- result{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		s.logger.Debug("OCR completed",
			zap.String("image", imagePath),
			zap.Int("text_length", len(res.text)),
		)
		return res.text, nil
	case <-runCtx.Done():
		return "", &OCRRunError{Image: imagePath, Err: runCtx.Err()}
	}
}

func (s *OCRService) recognize(imagePath string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if s.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(s.cfg.TessdataPrefix); err != nil {
			return "", &OCRInitError{Err: err}
		}
	}
	if err := client.SetLanguage(s.cfg.Language); err != nil {
		return "", &OCRInitError{Err: err}
	}

	if err := client.SetImage(imagePath); err != nil {
		return "", &OCRRunError{Image: imagePath, Err: err}
	}

	text, err := client.Text()
	if err != nil {
		return "", &OCRRunError{Image: imagePath, Err: err}
	}

	return text, nil
}
