// Package pixelcount converts images to 8-bit grayscale and counts, or
// highlights, the pixels whose gray level falls in a window.
package pixelcount

import (
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"curiesuite/domain/pixel"
	"curiesuite/internal/errors"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Highlight is the colour painted over in-range pixels
var Highlight = color.RGBA{R: 255, G: 255, B: 0, A: 255}

// Decode reads any registered format (png, jpeg, gif, bmp, tiff, webp)
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.InvalidInputf("unsupported or corrupt image: %v", err)
	}
	return img, format, nil
}

// Luma is the ITU-R 601-2 transform 299/1000 R + 587/1000 G + 114/1000 B on
// 8-bit channels, rounded in 16-bit fixed point
func Luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*19595 + uint32(g)*38470 + uint32(b)*7471 + 0x8000) >> 16)
}

// Grayscale converts img to 8-bit gray. Alpha is ignored.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return out
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.Pix[(y-b.Min.Y)*out.Stride+(x-b.Min.X)] = Luma(c.R, c.G, c.B)
		}
	}
	return out
}

// Count tallies the gray levels of gray inside rng
func Count(gray *image.Gray, rng pixel.Range) (inRange, total int) {
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[gray.PixOffset(b.Min.X, y):gray.PixOffset(b.Max.X, y)]
		for _, v := range row {
			if rng.Contains(v) {
				inRange++
			}
		}
	}
	return inRange, b.Dx() * b.Dy()
}

// CountImage converts and counts in one step
func CountImage(name string, img image.Image, rng pixel.Range) (pixel.Count, error) {
	if err := rng.Validate(); err != nil {
		return pixel.Count{}, errors.InvalidInput(err.Error())
	}
	in, total := Count(Grayscale(img), rng)
	return pixel.Count{FileName: name, InRange: in, Total: total}, nil
}

// Render returns the grayscale image, or with highlight set an RGB copy with
// in-range pixels painted yellow
func Render(gray *image.Gray, rng pixel.Range, highlight bool) image.Image {
	if !highlight {
		return gray
	}
	b := gray.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := gray.GrayAt(x, y).Y
			if rng.Contains(v) {
				out.SetRGBA(x, y, Highlight)
				continue
			}
			out.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

// Preview scales img down to at most maxWidth pixels wide. Smaller images
// are returned unchanged.
func Preview(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
