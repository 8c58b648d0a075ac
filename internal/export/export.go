// Package export encodes generated images into downloadable raster formats.
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
)

// Format is a raster output format
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

const jpegQuality = 90

// ParseFormat accepts png, jpeg and jpg. Empty means png.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", s)
	}
}

// ContentType returns the MIME type of f
func (f Format) ContentType() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Extension returns the file extension of f, with the leading dot
func (f Format) Extension() string {
	if f == JPEG {
		return ".jpg"
	}
	return ".png"
}

// Encode serializes img in format f
func Encode(img image.Image, f Format) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("no image to encode")
	}

	var buf bytes.Buffer
	switch f {
	case JPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// Filename names image index of a generation, e.g. 3f2a_1.png
func Filename(prefix string, index int, f Format) string {
	return fmt.Sprintf("%s_%d%s", prefix, index+1, f.Extension())
}
