package storage

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

var (
	ErrUnsupportedImageFormat = errors.New("unsupported image format")
	ErrInvalidImage           = errors.New("image could not be decoded")
)

// Largest background the site serves; bigger uploads are scaled down.
const (
	BackgroundMaxWidth  = 2560
	BackgroundMaxHeight = 1440
)

var backgroundExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "bmp": true,
}

// BackgroundStore owns the single site background image, always stored as PNG.
type BackgroundStore struct {
	path string
}

func NewBackgroundStore(path string) *BackgroundStore {
	return &BackgroundStore{path: path}
}

func (b *BackgroundStore) Path() string {
	return b.path
}

// Exists reports whether a background has been set.
func (b *BackgroundStore) Exists() bool {
	info, err := os.Stat(b.path)
	return err == nil && !info.IsDir()
}

// Replace validates filename's extension, decodes data, scales it to fit
// within BackgroundMaxWidth x BackgroundMaxHeight and overwrites the asset.
func (b *BackgroundStore) Replace(filename string, data io.Reader) error {
	if !AllowedBackground(filename) {
		return fmt.Errorf("%w: %s", ErrUnsupportedImageFormat, filename)
	}

	src, _, err := image.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	img := scaleToFit(src, BackgroundMaxWidth, BackgroundMaxHeight)

	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return fmt.Errorf("failed to create background directory: %w", err)
	}

	tmpPath := b.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode background: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace background: %w", err)
	}
	return nil
}

// AllowedBackground reports whether filename has an accepted image extension.
func AllowedBackground(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return backgroundExtensions[ext]
}

func scaleToFit(src image.Image, maxW, maxH int) image.Image {
	w, h := fitWithin(src.Bounds().Dx(), src.Bounds().Dy(), maxW, maxH)
	if w == src.Bounds().Dx() && h == src.Bounds().Dy() {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// fitWithin shrinks w x h to fit the box while keeping the aspect ratio.
// It never enlarges.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	return min(nw, maxW), min(nh, maxH)
}
