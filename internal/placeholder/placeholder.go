// Package placeholder draws the gradient images shown before anything has
// been generated.
package placeholder

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

const (
	Width  = 400
	Height = 300
)

type stop struct {
	pos float64
	c   color.RGBA
}

var ramps = [4][]stop{
	{{0, hex(0x3a1c71)}, {0.5, hex(0xd76d77)}, {1, hex(0xffaf7b)}},
	{{0, hex(0x4b6cb7)}, {1, hex(0x182848)}},
	{{0, hex(0xf46b45)}, {1, hex(0xeea849)}},
	{{0, hex(0x43cea2)}, {1, hex(0x185a9d)}},
}

func hex(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// Gradient returns a w x h image filled with the diagonal ramp picked by
// index modulo 4.
func Gradient(index, w, h int) *image.RGBA {
	ramp := ramps[((index%4)+4)%4]
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	// project every pixel onto the top-left to bottom-right diagonal
	dx, dy := float64(w), float64(h)
	norm := dx*dx + dy*dy
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t := (float64(x)*dx + float64(y)*dy) / norm
			img.SetRGBA(x, y, at(ramp, t))
		}
	}
	return img
}

func at(ramp []stop, t float64) color.RGBA {
	if t <= ramp[0].pos {
		return ramp[0].c
	}
	for i := 1; i < len(ramp); i++ {
		a, b := ramp[i-1], ramp[i]
		if t <= b.pos {
			f := (t - a.pos) / (b.pos - a.pos)
			return color.RGBA{
				R: lerp(a.c.R, b.c.R, f),
				G: lerp(a.c.G, b.c.G, f),
				B: lerp(a.c.B, b.c.B, f),
				A: 0xff,
			}
		}
	}
	return ramp[len(ramp)-1].c
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*f + 0.5)
}

// PNG encodes the placeholder for index at the default size.
func PNG(index int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Gradient(index, Width, Height)); err != nil {
		return nil, fmt.Errorf("error encoding placeholder %d: %w", index, err)
	}
	return buf.Bytes(), nil
}

// DataURL returns the placeholder for index as a data: URL.
func DataURL(index int) (string, error) {
	data, err := PNG(index)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
