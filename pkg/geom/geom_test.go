package geom

import (
	"math"
	"testing"

	errs "github.com/matzehuels/rostermap/pkg/errors"
)

const tol = 1e-9

func near(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestRegularPolygon(t *testing.T) {
	ring, err := RegularPolygon(Point{10, 20}, 5, 35)
	if err != nil {
		t.Fatalf("RegularPolygon() error: %v", err)
	}
	if len(ring) != 35 {
		t.Fatalf("len = %d, want 35", len(ring))
	}
	if !near(ring[0][0], 15, tol) || !near(ring[0][1], 20, tol) {
		t.Errorf("ring[0] = %v, want [15 20]", ring[0])
	}
	for i, p := range ring {
		if d := math.Hypot(p[0]-10, p[1]-20); !near(d, 5, 1e-9) {
			t.Errorf("vertex %d at distance %v, want 5", i, d)
		}
	}
	if SignedArea(ring) <= 0 {
		t.Errorf("SignedArea = %v, want counter-clockwise (positive)", SignedArea(ring))
	}
}

func TestRegularPolygonRejectsDegenerate(t *testing.T) {
	tests := []struct {
		name   string
		radius float64
		sides  int
	}{
		{"zero radius", 0, 35},
		{"negative radius", -1, 35},
		{"nan radius", math.NaN(), 35},
		{"infinite radius", math.Inf(1), 35},
		{"two sides", 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RegularPolygon(Point{}, tt.radius, tt.sides)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errs.Is(err, errs.ErrCodeInvalidGeometry) {
				t.Errorf("code = %v, want %v", errs.GetCode(err), errs.ErrCodeInvalidGeometry)
			}
		})
	}
}

func TestAreaAndCentroid(t *testing.T) {
	square := Ring{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	if got := Area(square); !near(got, 16, tol) {
		t.Errorf("Area = %v, want 16", got)
	}
	c := Centroid(square)
	if !near(c[0], 2, tol) || !near(c[1], 2, tol) {
		t.Errorf("Centroid = %v, want [2 2]", c)
	}

	cw := Ring{{0, 0}, {0, 4}, {4, 4}, {4, 0}}
	if SignedArea(cw) >= 0 {
		t.Errorf("SignedArea(cw) = %v, want negative", SignedArea(cw))
	}
	if got := Area(cw); !near(got, 16, tol) {
		t.Errorf("Area(cw) = %v, want 16", got)
	}
}

func TestCircleAreaConverges(t *testing.T) {
	ring, _ := RegularPolygon(Point{}, 10, 35)
	want := math.Pi * 100
	if got := Area(ring); math.Abs(got-want)/want > 0.01 {
		t.Errorf("Area(35-gon) = %v, want within 1%% of %v", got, want)
	}
}

func TestContains(t *testing.T) {
	square := Ring{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{2, 2}, true},
		{Point{5, 2}, false},
		{Point{-1, -1}, false},
		{Point{0.1, 3.9}, true},
	}
	for _, tt := range tests {
		if got := Contains(square, tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if Contains(Ring{{0, 0}, {1, 1}}, Point{0, 0}) {
		t.Error("degenerate ring should contain nothing")
	}
}

func TestClipHalfPlane(t *testing.T) {
	square := Ring{{0, 0}, {4, 0}, {4, 4}, {0, 4}}

	// Keep x <= 1.
	left := ClipHalfPlane(square, 1, 0, 1)
	if got := Area(left); !near(got, 4, 1e-9) {
		t.Errorf("Area(x<=1) = %v, want 4", got)
	}

	// Keep everything.
	all := ClipHalfPlane(square, 1, 0, 10)
	if got := Area(all); !near(got, 16, 1e-9) {
		t.Errorf("Area(x<=10) = %v, want 16", got)
	}

	// Keep nothing.
	if none := ClipHalfPlane(square, 1, 0, -1); none != nil {
		t.Errorf("ClipHalfPlane(x<=-1) = %v, want nil", none)
	}

	// Input untouched.
	if square[1] != (Point{4, 0}) {
		t.Errorf("input mutated: %v", square)
	}
}

func TestPackRadius(t *testing.T) {
	tests := []struct {
		weight, scale, want float64
	}{
		{4, 1, 2},
		{9, 0.5, 1.5},
		{0, 1, 0},
		{-3, 1, 0},
		{math.NaN(), 1, 0},
	}
	for _, tt := range tests {
		if got := PackRadius(tt.weight, tt.scale); !near(got, tt.want, tol) {
			t.Errorf("PackRadius(%v, %v) = %v, want %v", tt.weight, tt.scale, got, tt.want)
		}
	}
}

func TestTokenZeroRadius(t *testing.T) {
	tok := Token(Point{3, 3}, 0, 8)
	if len(tok) != 8 {
		t.Fatalf("len = %d, want 8", len(tok))
	}
	for _, p := range tok {
		if p != (Point{3, 3}) {
			t.Errorf("vertex = %v, want [3 3]", p)
		}
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{-0.5, 0}, {0, 0}, {0.25, 0.25}, {1, 1}, {1.7, 1}, {math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Clamp01(tt.in); got != tt.want {
			t.Errorf("Clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
