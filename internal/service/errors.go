package service

import "fmt"

// ExternalToolError reports a rasterizer subprocess that failed or could not
// be started. Stderr carries the tool's diagnostic output when available.
type ExternalToolError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ExternalToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %s", e.Tool, e.Stderr)
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// OCRInitError reports that the OCR engine or its model data could not be
// loaded; this is independent of any particular image.
type OCRInitError struct {
	Err error
}

func (e *OCRInitError) Error() string { return fmt.Sprintf("ocr engine init failed: %v", e.Err) }

func (e *OCRInitError) Unwrap() error { return e.Err }

// OCRRunError reports that recognition failed (or timed out) on one image.
type OCRRunError struct {
	Image string
	Err   error
}

func (e *OCRRunError) Error() string {
	return fmt.Sprintf("ocr failed on %s: %v", e.Image, e.Err)
}

func (e *OCRRunError) Unwrap() error { return e.Err }

// StorageError wraps a persistence failure. Unlike extraction errors it is a
// hard failure: the caller's request fails.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }
