package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFitLogo(t *testing.T) {
	t.Run("downscales oversized png keeping aspect ratio", func(t *testing.T) {
		out, changed, err := FitLogo(encodePNG(t, 1024, 256), "image/png", 512)
		require.NoError(t, err)
		assert.True(t, changed)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, 512, cfg.Width)
		assert.Equal(t, 128, cfg.Height)
	})

	t.Run("small image untouched", func(t *testing.T) {
		in := encodePNG(t, 64, 64)
		out, changed, err := FitLogo(in, "image/png", 512)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, in, out)
	})

	t.Run("svg passes through", func(t *testing.T) {
		in := []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)
		out, changed, err := FitLogo(in, "image/svg+xml", 512)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, in, out)
	})

	t.Run("corrupt png", func(t *testing.T) {
		_, _, err := FitLogo([]byte{0x89, 0x50, 0x4E, 0x47}, "image/png", 512)
		assert.Error(t, err)
	})
}
