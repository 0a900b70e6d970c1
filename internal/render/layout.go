package render

import (
	"math"
	"math/rand/v2"

	"github.com/leapstack-labs/leaplineage/internal/dag"
)

// Point is a layout position.
type Point struct {
	X, Y float64
}

// SpringLayout positions the graph nodes with the Fruchterman-Reingold
// force-directed algorithm. Edges are treated as undirected. k is the optimal
// distance between nodes; zero means 1/sqrt(n). The result is keyed by node ID,
// centred on the origin and scaled so the largest coordinate is 1. The same
// graph, k, seed and iterations always give the same layout.
func SpringLayout(g *dag.Graph, k float64, seed uint64, iterations int) map[string]Point {
	nodes := g.Nodes()
	n := len(nodes)
	out := make(map[string]Point, n)
	switch n {
	case 0:
		return out
	case 1:
		out[nodes[0].ID] = Point{}
		return out
	}

	index := make(map[string]int, n)
	for i, node := range nodes {
		index[node.ID] = i
	}
	adj := make([][]bool, n)
	for i := range adj {
		adj[i] = make([]bool, n)
	}
	for _, e := range g.Edges() {
		i, j := index[e[0]], index[e[1]]
		adj[i][j] = true
		adj[j][i] = true
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	pos := make([]Point, n)
	for i := range pos {
		pos[i] = Point{X: rng.Float64(), Y: rng.Float64()}
	}

	if k <= 0 {
		k = math.Sqrt(1.0 / float64(n))
	}

	minX, maxX, minY, maxY := bounds(pos)
	t := math.Max(maxX-minX, maxY-minY) * 0.1
	dt := t / float64(iterations+1)

	disp := make([]Point, n)
	for range iterations {
		for i := range disp {
			disp[i] = Point{}
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				dx := pos[i].X - pos[j].X
				dy := pos[i].Y - pos[j].Y
				d := math.Max(math.Hypot(dx, dy), 0.01)
				// repulsion k²/d minus attraction d²/k along connected pairs
				f := k * k / (d * d)
				if adj[i][j] {
					f -= d / k
				}
				disp[i].X += dx * f
				disp[i].Y += dy * f
			}
		}
		for i := range pos {
			length := math.Max(math.Hypot(disp[i].X, disp[i].Y), 0.01)
			pos[i].X += disp[i].X * t / length
			pos[i].Y += disp[i].Y * t / length
		}
		t -= dt
	}

	rescale(pos)
	for i, node := range nodes {
		out[node.ID] = pos[i]
	}
	return out
}

func bounds(pos []Point) (minX, maxX, minY, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range pos {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return minX, maxX, minY, maxY
}

// rescale centres positions on the origin and scales them into [-1, 1].
func rescale(pos []Point) {
	var cx, cy float64
	for _, p := range pos {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(pos))
	cy /= float64(len(pos))

	limit := 0.0
	for i := range pos {
		pos[i].X -= cx
		pos[i].Y -= cy
		limit = math.Max(limit, math.Max(math.Abs(pos[i].X), math.Abs(pos[i].Y)))
	}
	if limit == 0 {
		return
	}
	for i := range pos {
		pos[i].X /= limit
		pos[i].Y /= limit
	}
}
