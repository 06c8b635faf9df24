// Package chart draws the monthly worked/required hours as a PNG bar chart.
package chart

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Group is one month on the chart.
type Group struct {
	Label    string
	Worked   float64
	Required float64
}

// Options controls the canvas size.
type Options struct {
	Width  int
	Height int
}

var (
	background   = color.RGBA{0xff, 0xff, 0xff, 0xff}
	axisColor    = color.RGBA{0x44, 0x44, 0x44, 0xff}
	gridColor    = color.RGBA{0xe5, 0xe5, 0xe5, 0xff}
	workedColor  = color.RGBA{0x2b, 0x8a, 0x3e, 0xff}
	deficitColor = color.RGBA{0xc9, 0x2a, 0x2a, 0xff}
	requiredCol  = color.RGBA{0xa5, 0xb4, 0xc4, 0xff}
)

const (
	marginLeft   = 48
	marginRight  = 16
	marginTop    = 24
	marginBottom = 32
	gridLines    = 4
)

// Render draws groups into a new RGBA image.
func Render(groups []Group, opts Options) *image.RGBA {
	if opts.Width <= 0 {
		opts.Width = 720
	}
	if opts.Height <= 0 {
		opts.Height = 320
	}
	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	plot := image.Rect(marginLeft, marginTop, opts.Width-marginRight, opts.Height-marginBottom)
	top := niceCeil(maxHours(groups))

	for i := 0; i <= gridLines; i++ {
		v := top * float64(i) / gridLines
		y := plot.Max.Y - int(math.Round(float64(plot.Dy())*v/top))
		fill(img, image.Rect(plot.Min.X, y, plot.Max.X, y+1), gridColor)
		label(img, 4, y+4, strconv.FormatFloat(v, 'f', 0, 64)+"h")
	}
	fill(img, image.Rect(plot.Min.X, plot.Min.Y, plot.Min.X+1, plot.Max.Y), axisColor)
	fill(img, image.Rect(plot.Min.X, plot.Max.Y, plot.Max.X, plot.Max.Y+1), axisColor)

	if len(groups) == 0 {
		label(img, plot.Min.X+8, plot.Min.Y+16, "no data")
		return img
	}

	slot := plot.Dx() / len(groups)
	barW := max(slot/3, 1)
	for i, g := range groups {
		x := plot.Min.X + i*slot + (slot-2*barW)/2
		bar(img, plot, x, barW, g.Required, top, requiredCol)
		c := workedColor
		if g.Worked < g.Required {
			c = deficitColor
		}
		bar(img, plot, x+barW, barW, g.Worked, top, c)
		label(img, plot.Min.X+i*slot+2, plot.Max.Y+16, g.Label)
	}
	return img
}

// Encode renders groups and writes them as PNG.
func Encode(w io.Writer, groups []Group, opts Options) error {
	return png.Encode(w, Render(groups, opts))
}

func bar(img *image.RGBA, plot image.Rectangle, x, w int, v, top float64, c color.Color) {
	if v <= 0 {
		return
	}
	h := int(math.Round(float64(plot.Dy()) * v / top))
	fill(img, image.Rect(x, plot.Max.Y-h, x+w, plot.Max.Y), c)
}

func fill(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{c}, image.Point{}, draw.Src)
}

func label(img *image.RGBA, x, y int, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(axisColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func maxHours(groups []Group) float64 {
	m := 0.0
	for _, g := range groups {
		m = math.Max(m, math.Max(g.Worked, g.Required))
	}
	return m
}

// niceCeil rounds v up to a multiple of 10 hours, at least 10.
func niceCeil(v float64) float64 {
	if v <= 10 {
		return 10
	}
	return math.Ceil(v/10) * 10
}
