package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "clean text", sanitizeUTF8("clean text"))
	assert.Equal(t, "café", sanitizeUTF8("café"))

	// Broken bytes from OCR get dropped, the rest survives.
	broken := "ab" + string([]byte{0xff, 0xfe}) + "cd"
	assert.Equal(t, "abcd", sanitizeUTF8(broken))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "abc", truncateRunes("abcdef", 3))
	assert.Equal(t, "ééé", truncateRunes("ééééé", 3))
}
