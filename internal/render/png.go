package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/leapstack-labs/leaplineage/internal/dag"
)

var (
	nodeColor  = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	edgeColor  = color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff}
	labelColor = color.Black
)

// PNGOptions controls the static image.
type PNGOptions struct {
	WidthIn    float64
	HeightIn   float64
	DPI        float64
	SpringK    float64
	Seed       uint64
	Iterations int
	// MaxLabels caps how many nodes, in insertion order, get a text label.
	MaxLabels int
	// LabelPt is the label font size in points.
	LabelPt float64
}

var labelFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

// labelFace returns a face of size pt at dpi, falling back to the fixed
// 7x13 bitmap font.
func labelFace(pt, dpi float64) font.Face {
	f, err := labelFont()
	if err != nil || pt <= 0 {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: pt, DPI: dpi, Hinting: font.HintingFull})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

// DefaultPNGOptions returns a 10x8 inch, 150 dpi image with 50 labels.
func DefaultPNGOptions() PNGOptions {
	return PNGOptions{
		WidthIn:    10,
		HeightIn:   8,
		DPI:        150,
		SpringK:    0.4,
		Seed:       42,
		Iterations: 50,
		MaxLabels:  50,
		LabelPt:    8,
	}
}

// PNG draws the graph and returns the encoded image.
func PNG(g *dag.Graph, opts PNGOptions) ([]byte, error) {
	width := int(math.Round(opts.WidthIn * opts.DPI))
	height := int(math.Round(opts.HeightIn * opts.DPI))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	layout := SpringLayout(g, opts.SpringK, opts.Seed, opts.Iterations)

	// keep a margin so nodes and labels near the edge stay inside the frame
	margin := 0.06 * math.Min(float64(width), float64(height))
	toPixel := func(p Point) (float64, float64) {
		x := margin + (p.X+1)/2*(float64(width)-2*margin)
		y := margin + (1-(p.Y+1)/2)*(float64(height)-2*margin)
		return x, y
	}

	radius := math.Max(3, opts.DPI/25)
	lineWidth := math.Max(1, opts.DPI/100)

	for _, e := range g.Edges() {
		x0, y0 := toPixel(layout[e[0]])
		if e[0] == e[1] {
			drawLoop(img, x0, y0, radius, lineWidth)
			continue
		}
		x1, y1 := toPixel(layout[e[1]])
		drawArrow(img, x0, y0, x1, y1, radius, lineWidth)
	}

	for _, node := range g.Nodes() {
		x, y := toPixel(layout[node.ID])
		fillPolygon(img, circle(x, y, radius, 24), nodeColor)
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: labelFace(opts.LabelPt, opts.DPI),
	}
	for i, node := range g.Nodes() {
		if i >= opts.MaxLabels {
			break
		}
		x, y := toPixel(layout[node.ID])
		w := d.MeasureString(node.ID).Round()
		d.Dot = fixed.P(int(x)-w/2, int(y-radius-3))
		d.DrawString(node.ID)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

type vec struct{ x, y float64 }

func circle(cx, cy, r float64, segments int) []vec {
	pts := make([]vec, segments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(segments)
		pts[i] = vec{cx + r*math.Cos(a), cy + r*math.Sin(a)}
	}
	return pts
}

// drawArrow draws a line from (x0,y0) to the rim of the node at (x1,y1) with
// a triangular head.
func drawArrow(img draw.Image, x0, y0, x1, y1, radius, width float64) {
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length < 2*radius {
		return
	}
	ux, uy := dx/length, dy/length
	nx, ny := -uy, ux

	head := 3 * radius
	tipX, tipY := x1-ux*radius, y1-uy*radius
	baseX, baseY := tipX-ux*head, tipY-uy*head
	hw := width / 2

	fillPolygon(img, []vec{
		{x0 + nx*hw, y0 + ny*hw},
		{baseX + nx*hw, baseY + ny*hw},
		{baseX - nx*hw, baseY - ny*hw},
		{x0 - nx*hw, y0 - ny*hw},
	}, edgeColor)
	fillPolygon(img, []vec{
		{tipX, tipY},
		{baseX + nx*head/3, baseY + ny*head/3},
		{baseX - nx*head/3, baseY - ny*head/3},
	}, edgeColor)
}

// drawLoop draws a self edge as a ring touching the top of the node.
func drawLoop(img draw.Image, x, y, radius, width float64) {
	r := 1.5 * radius
	cx, cy := x, y-radius-r+width
	const segments = 24
	hw := width / 2
	for i := range segments {
		a0 := 2 * math.Pi * float64(i) / segments
		a1 := 2 * math.Pi * float64(i+1) / segments
		fillPolygon(img, []vec{
			{cx + (r+hw)*math.Cos(a0), cy + (r+hw)*math.Sin(a0)},
			{cx + (r+hw)*math.Cos(a1), cy + (r+hw)*math.Sin(a1)},
			{cx + (r-hw)*math.Cos(a1), cy + (r-hw)*math.Sin(a1)},
			{cx + (r-hw)*math.Cos(a0), cy + (r-hw)*math.Sin(a0)},
		}, edgeColor)
	}
}

// fillPolygon rasterizes a closed polygon into its bounding box only.
func fillPolygon(img draw.Image, pts []vec, c color.Color) {
	if len(pts) < 3 {
		return
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.x), math.Max(maxX, p.x)
		minY, maxY = math.Min(minY, p.y), math.Max(maxY, p.y)
	}
	box := image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX))+1, int(math.Ceil(maxY))+1)
	box = box.Intersect(img.Bounds())
	if box.Empty() {
		return
	}

	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	z := vector.NewRasterizer(box.Dx(), box.Dy())
	z.DrawOp = draw.Over
	z.MoveTo(float32(pts[0].x-ox), float32(pts[0].y-oy))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.x-ox), float32(p.y-oy))
	}
	z.ClosePath()
	z.Draw(img, box, image.NewUniform(c), image.Point{})
}
