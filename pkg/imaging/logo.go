package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// DefaultLogoMaxDimension bounds the longest edge of stored company logos.
const DefaultLogoMaxDimension = 512

// FitLogo downscales a PNG or JPEG so its longest edge is at most maxDimension,
// re-encoding in the original format. SVG and other formats are returned as-is,
// as are images already within bounds. The returned bool reports a rewrite.
func FitLogo(data []byte, contentType string, maxDimension int) ([]byte, bool, error) {
	if contentType != "image/png" && contentType != "image/jpeg" {
		return data, false, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode image (format: %s): %w", format, err)
	}

	bounds := img.Bounds()
	newWidth, newHeight := fitWithin(bounds.Dx(), bounds.Dy(), maxDimension)
	if newWidth == bounds.Dx() && newHeight == bounds.Dy() {
		return data, false, nil
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch contentType {
	case "image/png":
		err = png.Encode(&buf, resized)
	default:
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), true, nil
}

// fitWithin keeps the aspect ratio while bounding the longest edge
func fitWithin(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}
	if width > height {
		return maxDimension, max(1, int(float64(height)*float64(maxDimension)/float64(width)))
	}
	return max(1, int(float64(width)*float64(maxDimension)/float64(height))), maxDimension
}
