package rimage

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var font *truetype.Font

// init sets up the fonts we want to use.
func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Font returns the font we use for drawing.
func Font() *truetype.Font {
	return font
}

// DrawString writes a string to the given context at a particular point.
func DrawString(dc *gg.Context, text string, p image.Point, c color.Color, size float64) {
	dc.SetFontFace(truetype.NewFace(Font(), &truetype.Options{Size: size}))
	dc.SetColor(c)
	dc.DrawStringWrapped(text, float64(p.X), float64(p.Y), 0, 0, float64(dc.Width()), 1, 0)
}

// DrawRectangleEmpty draws the outline of r into the context.
func DrawRectangleEmpty(dc *gg.Context, r image.Rectangle, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()
}

// PlotKeypoints draws keypoints over img and saves a PNG. A non-zero grid also outlines the tile
// grid of that cell size.
func PlotKeypoints(img *image.Gray, kps []image.Point, grid image.Point, outName string) error {
	dc := keypointContext(img, kps, grid)
	DrawString(dc, fmt.Sprintf("%d keypoints", len(kps)), image.Point{4, 4}, color.RGBA{255, 255, 0, 255}, 12)
	return dc.SavePNG(outName)
}

func keypointContext(img *image.Gray, kps []image.Point, grid image.Point) *gg.Context {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	dc := gg.NewContext(w, h)
	dc.DrawImage(img, 0, 0)

	if grid.X > 0 && grid.Y > 0 {
		for y := 0; y < h; y += grid.Y {
			for x := 0; x < w; x += grid.X {
				cell := image.Rect(x, y, x+grid.X, y+grid.Y).Intersect(img.Bounds())
				DrawRectangleEmpty(dc, cell, color.RGBA{0, 255, 0, 96}, 1)
			}
		}
	}

	dc.SetRGBA(0, 0, 1, 0.5)
	for _, p := range kps {
		dc.DrawCircle(float64(p.X), float64(p.Y), float64(3.0))
		dc.Fill()
	}
	return dc
}

// PlotMatches draws the left and right eyes side by side and a line for each matched pair.
// pairs[i] holds indices into leftKps and rightKps.
func PlotMatches(left, right *image.Gray, leftKps, rightKps []image.Point, pairs [][2]int, outName string) error {
	lw, lh := left.Bounds().Dx(), left.Bounds().Dy()
	rw, rh := right.Bounds().Dx(), right.Bounds().Dy()
	h := lh
	if rh > h {
		h = rh
	}

	dc := gg.NewContext(lw+rw, h)
	dc.DrawImage(left, 0, 0)
	dc.DrawImage(right, lw, 0)

	dc.SetLineWidth(1)
	for i, pair := range pairs {
		if pair[0] < 0 || pair[0] >= len(leftKps) || pair[1] < 0 || pair[1] >= len(rightKps) {
			continue
		}
		l, r := leftKps[pair[0]], rightKps[pair[1]]
		// cycle a few hues so neighbouring lines can be told apart
		switch i % 3 {
		case 0:
			dc.SetRGBA(1, 0, 0, 0.6)
		case 1:
			dc.SetRGBA(0, 1, 0, 0.6)
		default:
			dc.SetRGBA(0, 0.5, 1, 0.6)
		}
		dc.DrawLine(float64(l.X), float64(l.Y), float64(r.X+lw), float64(r.Y))
		dc.Stroke()
		dc.DrawCircle(float64(l.X), float64(l.Y), 2)
		dc.DrawCircle(float64(r.X+lw), float64(r.Y), 2)
		dc.Fill()
	}
	DrawString(dc, fmt.Sprintf("%d matches", len(pairs)), image.Point{4, 4}, color.RGBA{255, 255, 0, 255}, 12)
	return dc.SavePNG(outName)
}
