package quad

import (
	"bytes"
	"image"
	"image/color"
	"path/filepath"
	"testing"
)

func TestPixmapBGRAByteOrder(t *testing.T) {
	// A solid red 2x2 pixmap must serialize as BGRA: 0, 0, 255, 255.
	pm := NewPixmap(2, 2)
	pm.Clear(Red)

	want := []uint8{
		0, 0, 255, 255,
		0, 0, 255, 255,
		0, 0, 255, 255,
		0, 0, 255, 255,
	}
	if !bytes.Equal(pm.Data(), want) {
		t.Errorf("Data() = %v, want %v", pm.Data(), want)
	}
}

func TestPixmapSetGetPixel(t *testing.T) {
	pm := NewPixmap(4, 4)

	c := RGBA{R: 1, G: 0.5, B: 0.25, A: 1}
	pm.SetPixel(2, 1, c)

	got := pm.GetPixel(2, 1)
	const eps = 1.0 / 255
	if got.R < c.R-eps || got.R > c.R+eps ||
		got.G < c.G-eps || got.G > c.G+eps ||
		got.B < c.B-eps || got.B > c.B+eps ||
		got.A != 1 {
		t.Errorf("GetPixel = %+v, want approx %+v", got, c)
	}

	// Byte layout: B, G, R, A at the pixel's offset.
	i := (1*4 + 2) * 4
	if pm.Data()[i] != 63 && pm.Data()[i] != 64 {
		t.Errorf("blue byte = %d, want ~64", pm.Data()[i])
	}
	if pm.Data()[i+2] != 255 {
		t.Errorf("red byte = %d, want 255", pm.Data()[i+2])
	}
}

func TestPixmapOutOfBounds(t *testing.T) {
	pm := NewPixmap(2, 2)
	pm.SetPixel(-1, 0, Red)
	pm.SetPixel(0, 5, Red)

	if got := pm.GetPixel(-1, 0); got != Transparent {
		t.Errorf("GetPixel out of bounds = %+v, want Transparent", got)
	}
	for _, b := range pm.Data() {
		if b != 0 {
			t.Fatal("out-of-bounds SetPixel wrote into the buffer")
		}
	}
}

func TestNewPixmapFromBytes(t *testing.T) {
	data := make([]uint8, 2*3*4)
	pm, err := NewPixmapFromBytes(2, 3, data)
	if err != nil {
		t.Fatalf("NewPixmapFromBytes failed: %v", err)
	}
	if pm.Width() != 2 || pm.Height() != 3 {
		t.Errorf("got %dx%d, want 2x3", pm.Width(), pm.Height())
	}
	if &pm.Data()[0] != &data[0] {
		t.Error("expected the pixmap to wrap the input without copying")
	}

	if _, err := NewPixmapFromBytes(2, 3, make([]uint8, 23)); err == nil {
		t.Error("expected error for short data")
	}
	if _, err := NewPixmapFromBytes(2, 3, make([]uint8, 25)); err == nil {
		t.Error("expected error for long data")
	}
}

func TestPixmapImageRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 255, B: 0, A: 255})
	src.SetNRGBA(2, 1, color.NRGBA{R: 0, G: 0, B: 255, A: 255})

	pm := FromImage(src)
	if pm.Width() != 3 || pm.Height() != 2 {
		t.Fatalf("got %dx%d, want 3x2", pm.Width(), pm.Height())
	}

	// Red pixel stored as B=0, G=0, R=255.
	if pm.Data()[0] != 0 || pm.Data()[1] != 0 || pm.Data()[2] != 255 {
		t.Errorf("red pixel bytes = %v, want BGRA 0 0 255 255", pm.Data()[0:4])
	}

	img := pm.ToImage()
	if got := img.RGBAAt(0, 0); got.R != 255 || got.G != 0 || got.B != 0 {
		t.Errorf("ToImage red pixel = %+v", got)
	}
	if got := img.RGBAAt(2, 1); got.B != 255 || got.R != 0 {
		t.Errorf("ToImage blue pixel = %+v", got)
	}
}

func TestPixmapClone(t *testing.T) {
	pm := NewPixmap(2, 2)
	pm.Clear(Green)

	cl := pm.Clone()
	cl.SetPixel(0, 0, Blue)

	if pm.GetPixel(0, 0) != RGB(0, 1, 0) {
		t.Error("Clone must not share the pixel buffer")
	}
}

func TestPixmapImageInterface(t *testing.T) {
	pm := NewPixmap(5, 4)
	pm.Clear(White)

	var img image.Image = pm
	if img.Bounds() != image.Rect(0, 0, 5, 4) {
		t.Errorf("Bounds = %v", img.Bounds())
	}
	r, g, b, a := img.At(1, 1).RGBA()
	if r != 0xFFFF || g != 0xFFFF || b != 0xFFFF || a != 0xFFFF {
		t.Errorf("At(1,1) = %d %d %d %d, want white", r, g, b, a)
	}
}

func TestPixmapSavePNG(t *testing.T) {
	pm := NewPixmap(4, 4)
	pm.Clear(Red)

	path := filepath.Join(t.TempDir(), "out.png")
	if err := pm.SavePNG(path); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}
}
