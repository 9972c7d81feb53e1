package quad

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"
)

// Pixmap represents a rectangular pixel buffer in BGRA byte order
// (blue, green, red, alpha), 4 bytes per pixel, row-major with no row
// padding. This is the layout GPU textures in this package expect, so a
// Pixmap uploads and reads back without per-pixel conversion.
type Pixmap struct {
	width  int
	height int
	data   []uint8
}

// NewPixmap creates a new transparent pixmap with the given dimensions.
func NewPixmap(width, height int) *Pixmap {
	return &Pixmap{
		width:  width,
		height: height,
		data:   make([]uint8, width*height*4),
	}
}

// NewPixmapFromBytes wraps existing BGRA pixel data in a Pixmap without
// copying. The data length must be exactly width*height*4 bytes.
func NewPixmapFromBytes(width, height int, data []uint8) (*Pixmap, error) {
	if want := width * height * 4; len(data) != want {
		return nil, fmt.Errorf("quad: pixmap data is %d bytes, want %d (%dx%d BGRA)",
			len(data), want, width, height)
	}
	return &Pixmap{width: width, height: height, data: data}, nil
}

// Width returns the width of the pixmap.
func (p *Pixmap) Width() int {
	return p.width
}

// Height returns the height of the pixmap.
func (p *Pixmap) Height() int {
	return p.height
}

// Data returns the raw pixel data (BGRA format, tight rows).
func (p *Pixmap) Data() []uint8 {
	return p.data
}

// SetPixel sets the color of a single pixel.
func (p *Pixmap) SetPixel(x, y int, c RGBA) {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return
	}
	i := (y*p.width + x) * 4
	b := c.BGRA()
	copy(p.data[i:i+4], b[:])
}

// GetPixel returns the color of a single pixel.
func (p *Pixmap) GetPixel(x, y int) RGBA {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return Transparent
	}
	i := (y*p.width + x) * 4
	return RGBA{
		B: float64(p.data[i+0]) / 255,
		G: float64(p.data[i+1]) / 255,
		R: float64(p.data[i+2]) / 255,
		A: float64(p.data[i+3]) / 255,
	}
}

// Clear fills the entire pixmap with a color.
func (p *Pixmap) Clear(c RGBA) {
	b := c.BGRA()
	for i := 0; i < len(p.data); i += 4 {
		copy(p.data[i:i+4], b[:])
	}
}

// Clone returns an independent copy of the pixmap.
func (p *Pixmap) Clone() *Pixmap {
	out := NewPixmap(p.width, p.height)
	copy(out.data, p.data)
	return out
}

// ToImage converts the pixmap to an image.RGBA, swizzling BGRA to RGBA.
func (p *Pixmap) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	for i := 0; i < len(p.data); i += 4 {
		img.Pix[i+0] = p.data[i+2]
		img.Pix[i+1] = p.data[i+1]
		img.Pix[i+2] = p.data[i+0]
		img.Pix[i+3] = p.data[i+3]
	}
	return img
}

// FromImage creates a pixmap from any image. The source is normalized to
// 8-bit RGBA first, then swizzled into BGRA byte order.
func FromImage(img image.Image) *Pixmap {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.Copy(rgba, image.Point{}, img, bounds, xdraw.Src, nil)

	pm := NewPixmap(width, height)
	for i := 0; i < len(pm.data); i += 4 {
		pm.data[i+0] = rgba.Pix[i+2]
		pm.data[i+1] = rgba.Pix[i+1]
		pm.data[i+2] = rgba.Pix[i+0]
		pm.data[i+3] = rgba.Pix[i+3]
	}
	return pm
}

// SavePNG saves the pixmap to a PNG file.
func (p *Pixmap) SavePNG(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	img := p.ToImage()
	return png.Encode(f, img)
}

// At implements the image.Image interface.
func (p *Pixmap) At(x, y int) color.Color {
	return p.GetPixel(x, y).Color()
}

// Bounds implements the image.Image interface.
func (p *Pixmap) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.width, p.height)
}

// ColorModel implements the image.Image interface.
func (p *Pixmap) ColorModel() color.Model {
	return color.NRGBAModel
}
