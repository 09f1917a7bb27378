package cmd

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/blacktop/go-termimg"
	_ "golang.org/x/image/webp"
)

// renderImage draws image bytes with the terminal's graphics protocol,
// fitted into a box of the given cell size.
func renderImage(data []byte, width, height int) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("error decoding image: %w", err)
	}
	out, err := termimg.New(img).Width(width).Height(height).Render()
	if err != nil {
		return "", fmt.Errorf("error rendering image: %w", err)
	}
	return out, nil
}
