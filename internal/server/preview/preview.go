// Package preview derives small raster previews for images and videos.
package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path"
	"path/filepath"
	"time"

	execute "github.com/alexellis/go-execute/v2"
	"golang.org/x/image/draw"

	"medley/internal/server/classify"

	_ "image/gif"
	_ "image/png"
)

// ErrPreviewFailed wraps codec and extractor failures. The pipeline treats
// it as non-fatal: the file record is still created, with no preview ref.
var ErrPreviewFailed = errors.New("preview generation failed")

// Generator derives a preview artifact for an accepted file.
// ref is the artifact path relative to the preview root, or "" when the
// detected type has no preview (a success, not an error).
type Generator interface {
	Generate(ctx context.Context, user, relPath, srcPath, detectedType string) (ref string, err error)
	Remove(ref string) error
}

// FileGenerator writes JPEG previews under Root, mirroring the
// user/subfolder structure of the source file.
type FileGenerator struct {
	Root    string
	MaxDim  int
	Quality int
	FFmpeg  string
	Timeout time.Duration
}

// NewFileGenerator creates a preview generator rooted at root.
func NewFileGenerator(root string, maxDim, quality int, ffmpeg string, timeout time.Duration) *FileGenerator {
	return &FileGenerator{
		Root:    root,
		MaxDim:  maxDim,
		Quality: quality,
		FFmpeg:  ffmpeg,
		Timeout: timeout,
	}
}

// Generate produces a preview according to the detected top-level category:
// images are downscaled and re-encoded, videos contribute a single frame
// near the start, everything else yields no artifact.
func (g *FileGenerator) Generate(ctx context.Context, user, relPath, srcPath, detectedType string) (string, error) {
	category := classify.Category(detectedType)

	switch category {
	case "image", "video":
	default:
		return "", nil
	}

	ref := path.Join(user, relPath) + ".jpg"
	dst := filepath.Join(g.Root, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create preview directory: %v", ErrPreviewFailed, err)
	}

	var err error
	if category == "image" {
		err = g.imagePreview(srcPath, dst)
	} else {
		err = g.videoPreview(ctx, srcPath, dst)
	}
	if err != nil {
		os.Remove(dst)
		return "", err
	}
	return ref, nil
}

// Remove deletes a previously generated artifact. Missing artifacts are
// not an error.
func (g *FileGenerator) Remove(ref string) error {
	err := os.Remove(filepath.Join(g.Root, filepath.FromSlash(ref)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove preview %s: %w", ref, err)
	}
	return nil
}

// imagePreview decodes src, scales it so the longer side is at most MaxDim,
// and re-encodes it as lossy JPEG.
func (g *FileGenerator) imagePreview(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("%w: failed to open source: %v", ErrPreviewFailed, err)
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return fmt.Errorf("%w: failed to decode image: %v", ErrPreviewFailed, err)
	}

	scaled := scaleDown(img, g.MaxDim)

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("%w: failed to create preview file: %v", ErrPreviewFailed, err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, scaled, &jpeg.Options{Quality: g.Quality}); err != nil {
		return fmt.Errorf("%w: failed to encode preview: %v", ErrPreviewFailed, err)
	}
	return nil
}

// videoPreview extracts the first available frame with ffmpeg. The wait on
// the subprocess runs in its own goroutine so the deadline bounds wall-clock
// time even when a grandchild keeps the output pipes open.
func (g *FileGenerator) videoPreview(ctx context.Context, srcPath, dstPath string) error {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	task := execute.ExecTask{
		Command: g.FFmpeg,
		Args: []string{
			"-y",
			"-ss", "0",
			"-i", srcPath,
			"-frames:v", "1",
			"-q:v", "4",
			dstPath,
		},
	}

	type execResult struct {
		res execute.ExecResult
		err error
	}
	done := make(chan execResult, 1)
	go func() {
		res, err := task.Execute(ctx)
		done <- execResult{res, err}
	}()

	var result execute.ExecResult
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: ffmpeg timed out after %s", ErrPreviewFailed, g.Timeout)
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("%w: ffmpeg failed: %v", ErrPreviewFailed, r.err)
		}
		result = r.res
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%w: ffmpeg exit code %d: %s", ErrPreviewFailed, result.ExitCode, result.Stderr)
	}
	if _, err := os.Stat(dstPath); err != nil {
		return fmt.Errorf("%w: ffmpeg produced no frame", ErrPreviewFailed)
	}
	return nil
}

// scaleDown resizes img so that its longer side is at most maxDim,
// preserving aspect ratio. Images already within bounds are returned as-is.
func scaleDown(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	var dw, dh int
	if w >= h {
		dw = maxDim
		dh = h * maxDim / w
	} else {
		dh = maxDim
		dw = w * maxDim / h
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
