// Package classify determines a file's true media type from its bytes.
//
// The client-declared content type is an attacker-controlled label, so every
// trust-sensitive decision downstream uses only the detected type.
package classify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrTypeMismatch means the sniffed top-level media category differs from
// the one the client declared.
var ErrTypeMismatch = errors.New("declared content type does not match file content")

// Detect sniffs the media type of the file at path from its magic bytes.
// The filename extension plays no part in the result.
func Detect(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to sniff content type: %w", err)
	}
	// Strip parameters such as "; charset=utf-8".
	detected, _, _ := strings.Cut(mtype.String(), ";")
	return strings.TrimSpace(detected), nil
}

// Check compares the top-level categories of the detected and declared types
// (e.g. "image" from "image/png") and returns ErrTypeMismatch when they differ.
func Check(detected, declared string) error {
	if Category(detected) != Category(declared) {
		return fmt.Errorf("%w: declared %q, detected %q", ErrTypeMismatch, declared, detected)
	}
	return nil
}

// Category returns the top-level media category of a MIME type.
func Category(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	category, _, _ := strings.Cut(strings.TrimSpace(mimeType), "/")
	return strings.ToLower(category)
}
