package export

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	img.Set(3, 3, color.RGBA{R: 200, A: 255})

	tests := []struct {
		format Format
		magic  []byte
	}{
		{PNG, []byte("\x89PNG")},
		{JPEG, []byte{0xFF, 0xD8}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			data, err := Encode(img, tt.format)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(data, tt.magic))

			decoded, _, err := image.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, 64, decoded.Bounds().Dx())
			assert.Equal(t, 48, decoded.Bounds().Dy())
		})
	}
}

func TestEncodeNil(t *testing.T) {
	_, err := Encode(nil, PNG)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": PNG, "PNG": PNG, "jpg": JPEG, "jpeg": JPEG} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("webp")
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "abc_1.png", Filename("abc", 0, PNG))
	assert.Equal(t, "abc_4.jpg", Filename("abc", 3, JPEG))
	assert.Equal(t, "image/jpeg", JPEG.ContentType())
}
